// Package server tracks live sessions and their display names through the
// Registry type, from which the roster is derived.
package server

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Session binds one live connection to a display name.
type Session struct {
	ID            string
	DisplayName   string
	DefaultedName bool
	JoinedAt      time.Time
	joinSeq       uint64
}

// Registry maps connections to sessions. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Client]*Session
	nextSeq  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Client]*Session)}
}

// Register creates a session with a placeholder name. Registering a client
// twice returns its existing session.
func (r *Registry) Register(client *Client) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[client]; ok {
		return sess
	}

	r.nextSeq++
	sess := &Session{
		ID:            uuid.NewString(),
		DisplayName:   PlaceholderName(),
		DefaultedName: true,
		JoinedAt:      time.Now().UTC(),
		joinSeq:       r.nextSeq,
	}
	r.sessions[client] = sess
	return sess
}

// Rename sanitizes name and assigns it to the client's session. It returns
// the stored name and false when the client is unknown or the name is blank.
func (r *Registry) Rename(client *Client, name string) (string, bool) {
	clean := protocol.SanitizeName(name)
	if clean == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[client]
	if !ok {
		return "", false
	}
	sess.DisplayName = clean
	sess.DefaultedName = false
	return clean, true
}

// Unregister removes the client's session and reports whether one existed.
func (r *Registry) Unregister(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[client]; !ok {
		return false
	}
	delete(r.sessions, client)
	return true
}

// Lookup returns a copy of the client's session.
func (r *Registry) Lookup(client *Client) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[client]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the display names of all live sessions in join order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, *sess)
	}
	r.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b Session) int {
		return cmp.Compare(a.joinSeq, b.joinSeq)
	})
	return lo.Map(sessions, func(sess Session, _ int) string {
		return sess.DisplayName
	})
}
