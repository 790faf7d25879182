package store

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	return []backend{
		{name: DriverMemory, open: func(t *testing.T) Store {
			return NewMemory()
		}},
		{name: DriverBadger, open: func(t *testing.T) Store {
			s, err := OpenBadger("", log)
			require.NoError(t, err)
			return s
		}},
		{name: DriverSQLite, open: func(t *testing.T) Store {
			s, err := OpenSQLite("")
			require.NoError(t, err)
			return s
		}},
	}
}

// forEachBackend runs fn against a fresh instance of every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer func() { require.NoError(t, s.Close()) }()
			fn(t, s)
		})
	}
}

func appendText(t *testing.T, s Store, channel, content string) protocol.Message {
	t.Helper()
	msg := protocol.Message{Kind: protocol.KindText, Channel: channel, Author: "tester", Content: content}
	require.NoError(t, s.Append(context.Background(), &msg))
	return msg
}

func contents(messages []protocol.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		before := time.Now().UTC()
		msg := appendText(t, s, "general", "hi")

		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.Before(before.Add(-time.Second)))

		history, err := s.History(context.Background(), "general")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, msg.ID, history[0].ID)
		assert.True(t, msg.CreatedAt.Equal(history[0].CreatedAt))
	})
}

func TestAppendKeepsGivenTimestampAndFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
		msg := protocol.Message{
			ID:           "fixed-id",
			Kind:         protocol.KindFile,
			Channel:      "media",
			Author:       "alice",
			Content:      "data:image/png;base64,AAAA",
			FileKind:     "image/png",
			Preformatted: true,
			CreatedAt:    at,
		}
		require.NoError(t, s.Append(context.Background(), &msg))

		history, err := s.History(context.Background(), "media")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, msg, history[0])
	})
}

func TestHistoryIsPartitionedByChannel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		for i := 0; i < 3; i++ {
			appendText(t, s, "a", fmt.Sprintf("a%d", i))
			appendText(t, s, "ab", fmt.Sprintf("ab%d", i))
		}

		a, err := s.History(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"a0", "a1", "a2"}, contents(a))

		ab, err := s.History(context.Background(), "ab")
		require.NoError(t, err)
		assert.Equal(t, []string{"ab0", "ab1", "ab2"}, contents(ab))

		empty, err := s.History(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)

		again, err := s.History(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, a, again)
	})
}

func TestDeleteLastNOnlyTouchesItsChannel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			appendText(t, s, "general", fmt.Sprintf("g%d", i))
		}
		// appended after general, so they are the globally most recent
		appendText(t, s, "random", "r0")
		appendText(t, s, "random", "r1")

		removed, err := s.DeleteLastN(ctx, "general", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		general, err := s.History(ctx, "general")
		require.NoError(t, err)
		assert.Equal(t, []string{"g0", "g1", "g2"}, contents(general))

		random, err := s.History(ctx, "random")
		require.NoError(t, err)
		assert.Equal(t, []string{"r0", "r1"}, contents(random))
	})
}

func TestDeleteLastNClampsAndRejectsNegative(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		appendText(t, s, "c", "1")
		appendText(t, s, "c", "2")

		removed, err := s.DeleteLastN(ctx, "c", -1)
		require.ErrorIs(t, err, ErrInvalidCount)
		assert.Zero(t, removed)

		removed, err = s.DeleteLastN(ctx, "c", 0)
		require.NoError(t, err)
		assert.Zero(t, removed)

		removed, err = s.DeleteLastN(ctx, "c", 10)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		removed, err = s.DeleteLastN(ctx, "c", 1)
		require.NoError(t, err)
		assert.Zero(t, removed)

		history, err := s.History(ctx, "c")
		require.NoError(t, err)
		assert.Empty(t, history)

		appendText(t, s, "c", "3")
		history, err = s.History(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, contents(history))
	})
}

func TestOpenSelectsDriver(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelError)

	s, err := Open(Config{Driver: DriverMemory}, log)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	require.NoError(t, s.Close())

	s, err = Open(Config{Driver: DriverSQLite}, log)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(Config{Driver: "mongo"}, log)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenWithoutDriverIsDurable(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	dir := t.TempDir()

	s, err := Open(Config{Path: dir}, log)
	require.NoError(t, err)
	assert.IsType(t, &Badger{}, s)
	appendText(t, s, "general", "kept")
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir}, log)
	require.NoError(t, err)
	defer s.Close()
	history, err := s.History(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, contents(history))
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctx := context.Background()

	s, err := OpenBadger(dir, log)
	require.NoError(t, err)
	appendText(t, s, "general", "one")
	appendText(t, s, "general", "two")
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, log)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	appendText(t, s, "general", "three")

	history, err := s.History(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, contents(history))
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/messages.db"
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	appendText(t, s, "general", "one")
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	appendText(t, s, "general", "two")

	history, err := s.History(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, contents(history))
}

func TestHistoryOfUnknownChannelIsEmptyNotNil(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		appendText(t, s, "Chat", "hello")

		history, err := s.History(context.Background(), "Nobody")
		require.NoError(t, err)
		assert.NotNil(t, history)
		assert.Empty(t, history)
	})
}

// fillBadger writes count messages to channel in bulk, bypassing Append.
func fillBadger(t *testing.T, s *Badger, channel string, count int) {
	t.Helper()
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i := 1; i <= count; i++ {
		value := fmt.Sprintf(`{"id":"%d","type":"message","channel":%q,"content":"m%d"}`, i, channel, i)
		require.NoError(t, wb.Set(messageKey(channel, uint64(i)), []byte(value)))
	}
	require.NoError(t, wb.Flush())
}

func TestBadgerDeleteLastNBeyondOneTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("writes several hundred thousand keys")
	}
	const total, keep = 150_000, 10
	ctx := context.Background()

	s, err := OpenBadger("", logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	fillBadger(t, s, "Chat", total)
	fillBadger(t, s, "Big", total)
	appendText(t, s, "Dev", "untouched")

	removed, err := s.DeleteLastN(ctx, "Chat", total-keep)
	require.NoError(t, err)
	assert.Equal(t, total-keep, removed)

	chat, err := s.History(ctx, "Chat")
	require.NoError(t, err)
	require.Len(t, chat, keep)
	assert.Equal(t, "m1", chat[0].Content)
	assert.Equal(t, fmt.Sprintf("m%d", keep), chat[keep-1].Content)

	removed, err = s.DeleteLastN(ctx, "Big", 2*total)
	require.NoError(t, err)
	assert.Equal(t, total, removed, "the count is clamped to what exists")

	big, err := s.History(ctx, "Big")
	require.NoError(t, err)
	assert.Empty(t, big)

	dev, err := s.History(ctx, "Dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"untouched"}, contents(dev))
}
