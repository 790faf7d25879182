package store

import (
	"context"
	"sync"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/samber/lo"
)

// Memory keeps the log in a slice. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	messages []protocol.Message
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, msg *protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepare(msg)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *Memory) History(_ context.Context, channel string) ([]protocol.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Filter(m.messages, func(msg protocol.Message, _ int) bool {
		return msg.Channel == channel
	}), nil
}

func (m *Memory) DeleteLastN(_ context.Context, channel string, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidCount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[int]struct{}, n)
	for i := len(m.messages) - 1; i >= 0 && len(drop) < n; i-- {
		if m.messages[i].Channel == channel {
			drop[i] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	kept := make([]protocol.Message, 0, len(m.messages)-len(drop))
	for i, msg := range m.messages {
		if _, ok := drop[i]; !ok {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return len(drop), nil
}

func (m *Memory) Close() error {
	return nil
}
