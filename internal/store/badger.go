package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix = "msg:"
	sequenceKey   = "seq:messages"
	// sequenceBandwidth is how many sequence numbers Badger leases at once.
	sequenceBandwidth = 128
)

// Badger stores messages in BadgerDB.
//
// Keys are "msg:" + uint32 channel length + channel + uint64 sequence, all
// big-endian, so a prefix scan over one channel yields its messages in
// insertion order and a reverse scan yields the most recent first. The
// length prefix keeps channel "a" from matching channel "ab".
type Badger struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// OpenBadger opens (or creates) a database at path. An empty path runs
// Badger fully in memory.
func OpenBadger(path string, log *slog.Logger) (*Badger, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log: log})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("lease message sequence: %w", err)
	}

	return &Badger{db: db, seq: seq, log: log}, nil
}

func channelPrefix(channel string) []byte {
	p := make([]byte, 0, len(messagePrefix)+4+len(channel)+8)
	p = append(p, messagePrefix...)
	p = binary.BigEndian.AppendUint32(p, uint32(len(channel)))
	return append(p, channel...)
}

func messageKey(channel string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(channelPrefix(channel), seq)
}

func (b *Badger) Append(_ context.Context, msg *protocol.Message) error {
	prepare(msg)

	next, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("next message sequence: %w", err)
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg.Channel, next), value)
	})
}

func (b *Badger) History(_ context.Context, channel string) ([]protocol.Message, error) {
	prefix := channelPrefix(channel)
	messages := []protocol.Message{}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg protocol.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return fmt.Errorf("decode key %x: %w", it.Item().Key(), err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteLastN collects the trailing keys with a reverse scan, then deletes
// them newest first. A channel whose tail does not fit in one transaction is
// deleted over several, each committed before the next starts, so an
// interrupted run still leaves the channel truncated at a suffix.
func (b *Badger) DeleteLastN(_ context.Context, channel string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidCount
	}
	if n == 0 {
		return 0, nil
	}

	keys, err := b.trailingKeys(channel, n)
	if err != nil {
		return 0, fmt.Errorf("scan last %d of %q: %w", n, channel, err)
	}

	removed, err := b.deleteKeys(keys)
	if err != nil {
		return removed, fmt.Errorf("delete last %d of %q: %w", n, channel, err)
	}
	return removed, nil
}

// trailingKeys returns up to n keys of channel, most recent first.
func (b *Badger) trailingKeys(channel string, n int) ([][]byte, error) {
	prefix := channelPrefix(channel)
	// Seek past the highest possible sequence of this channel.
	seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xff}, 8)...)

	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(keys) < n; it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// deleteKeys deletes keys in order, starting a new transaction whenever the
// current one is full. It returns how many deletions were committed.
func (b *Badger) deleteKeys(keys [][]byte) (int, error) {
	txn := b.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	committed := 0
	for i, key := range keys {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return committed, err
			}
			committed = i
			b.log.Debug("Badger delete split across transactions", "committed", committed, "total", len(keys))
			txn = b.db.NewTransaction(true)
			err = txn.Delete(key)
		}
		if err != nil {
			return committed, err
		}
	}
	if err := txn.Commit(); err != nil {
		return committed, err
	}
	return len(keys), nil
}

func (b *Badger) Close() error {
	if err := b.seq.Release(); err != nil {
		b.log.Warn("Releasing message sequence failed", "error", err)
	}
	return b.db.Close()
}

// badgerLogger routes Badger's own logging into slog. Badger is chatty at
// info level, so that goes to debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
