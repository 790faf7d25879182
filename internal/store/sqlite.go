package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS messages (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT    NOT NULL,
	kind         TEXT    NOT NULL,
	channel      TEXT    NOT NULL,
	author       TEXT    NOT NULL,
	content      TEXT    NOT NULL,
	file_kind    TEXT    NOT NULL DEFAULT '',
	preformatted INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
)`

const sqliteIndex = `CREATE INDEX IF NOT EXISTS idx_messages_channel_seq ON messages(channel, seq)`

// SQLite stores messages in a single table ordered by an autoincrement
// sequence. All access goes through one connection, which serializes writers
// and keeps an in-memory database alive for the lifetime of the store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path; an empty path uses ":memory:".
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, stmt := range append(pragmas, sqliteSchema, sqliteIndex) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize sqlite (%s): %w", stmt, err)
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, msg *protocol.Message) error {
	prepare(msg)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, kind, channel, author, content, file_kind, preformatted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Kind), msg.Channel, msg.Author, msg.Content, msg.FileKind,
		msg.Preformatted, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *SQLite) History(ctx context.Context, channel string) ([]protocol.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, channel, author, content, file_kind, preformatted, created_at
		 FROM messages WHERE channel = ? ORDER BY seq`,
		channel,
	)
	if err != nil {
		return nil, fmt.Errorf("query history of %q: %w", channel, err)
	}
	defer rows.Close()

	messages := []protocol.Message{}
	for rows.Next() {
		var (
			msg       protocol.Message
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &kind, &msg.Channel, &msg.Author, &msg.Content,
			&msg.FileKind, &msg.Preformatted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = protocol.Kind(kind)
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteLastN runs as one statement, which SQLite applies atomically.
func (s *SQLite) DeleteLastN(ctx context.Context, channel string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidCount
	}
	if n == 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE seq IN (
			SELECT seq FROM messages WHERE channel = ? ORDER BY seq DESC LIMIT ?
		)`,
		channel, n,
	)
	if err != nil {
		return 0, fmt.Errorf("delete last %d of %q: %w", n, channel, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted rows: %w", err)
	}
	return int(removed), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
