// internal/store/memory.go
//
// In-memory registry of live game sessions.
// Sessions only exist while the process runs; finished games are persisted
// separately by the results package.
//
// Characteristics:
//   - Stores *game.Controller values keyed by session ID.
//   - Each entry remembers its owner key and when it was last used.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - ErrNotFound is returned for unknown IDs.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/typing-escape/internal/game"
)

// ErrNotFound is returned when no session has the requested ID.
var ErrNotFound = errors.New("session not found")

// Session is a live controller plus bookkeeping.
type Session struct {
	Game     *game.Controller
	Owner    string    // user ID or anonymous cookie ID
	LastSeen time.Time // last Save/Get/Touch
}

// Store defines the registry interface for live sessions.
type Store interface {
	// Save registers or replaces a session.
	Save(ctx context.Context, g *game.Controller, owner string) error

	// Get retrieves a session by ID and marks it as used.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch marks a session as used.
	Touch(ctx context.Context, id string) error

	// Delete removes a session. It does not close the controller.
	Delete(ctx context.Context, id string) error

	// Expired lists sessions last used before cutoff.
	Expired(ctx context.Context, cutoff time.Time) ([]*Session, error)

	// All lists every session.
	All(ctx context.Context) ([]*Session, error)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex        // guards sessions
	sessions map[string]*Session // keyed by Controller.ID()
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memory {
	return &memory{sessions: make(map[string]*Session), now: now}
}

// Save adds or replaces the session in the map.
func (m *memory) Save(ctx context.Context, g *game.Controller, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[g.ID()] = &Session{Game: g, Owner: owner, LastSeen: m.now()}
	return nil
}

// Get looks up a session by ID and refreshes LastSeen.
func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.LastSeen = m.now()
	cp := *s
	return &cp, nil
}

func (m *memory) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastSeen = m.now()
	return nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memory) Expired(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.LastSeen.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memory) All(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}
