// Package store persists chat messages as an append-only log partitioned by
// channel. Backends share the Store contract: history in insertion order,
// deletion limited to the trailing messages of one channel, and no partial
// writes on failure.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/google/uuid"
)

// Backend drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// DefaultPath is where the default badger backend keeps its files.
const DefaultPath = "data/messages"

var (
	// ErrInvalidCount is returned by DeleteLastN for a negative count.
	ErrInvalidCount = errors.New("store: count must not be negative")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("store: unknown driver")
)

// Store is the message log used by the hub.
type Store interface {
	// Append assigns an ID and a timestamp when absent and persists msg.
	// The message is durable once Append returns nil.
	Append(ctx context.Context, msg *protocol.Message) error
	// History returns the messages of channel in insertion order.
	History(ctx context.Context, channel string) ([]protocol.Message, error)
	// DeleteLastN removes up to n of the most recent messages of channel
	// and returns how many were removed.
	DeleteLastN(ctx context.Context, channel string, n int) (int, error)
	Close() error
}

// Config selects and locates a backend. An empty Path keeps badger and
// sqlite in memory.
type Config struct {
	Driver string `toml:"driver" validate:"oneof=memory badger sqlite"`
	Path   string `toml:"path"`
}

// Open creates the backend named by cfg.Driver. An empty driver selects
// badger at DefaultPath unless a path is given. The memory backend keeps
// nothing across restarts and must be asked for explicitly.
func Open(cfg Config, log *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverBadger:
		return OpenBadger(cfg.Path, log)
	case "":
		return OpenBadger(cmp.Or(cfg.Path, DefaultPath), log)
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func prepare(msg *protocol.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}
