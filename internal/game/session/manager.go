// Package session tracks the actors currently connected to the host.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
)

var (
	// ErrAlreadyConnected is returned by Add for an actor that is already registered.
	ErrAlreadyConnected = errors.New("actor already connected")
	// ErrNotConnected is returned for actors that are not registered.
	ErrNotConnected = errors.New("actor not connected")
)

// outboxSize is the per-actor notice buffer.
const outboxSize = 64

// Session is one connected actor.
type Session struct {
	Actor  actor.Actor
	Outbox *Outbox
}

// Manager tracks connected actors.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Add registers a connected actor.
//
// Precondition: a must not be nil.
// Postcondition: Returns the new Session, or an error if the actor is already connected.
func (m *Manager) Add(a actor.Actor) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[a.ID()]; exists {
		return nil, fmt.Errorf("%s: %w", a.ID(), ErrAlreadyConnected)
	}
	s := &Session{Actor: a, Outbox: NewOutbox(a.ID().String(), outboxSize)}
	m.sessions[a.ID()] = s
	return s, nil
}

// Remove unregisters an actor and closes its outbox.
//
// Postcondition: Returns the removed Session, or an error if the actor is not connected.
func (m *Manager) Remove(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%s: %w", id, ErrNotConnected)
	}
	s.Outbox.Close()
	delete(m.sessions, id)
	return s, nil
}

// Get returns the session for id.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// All returns every connected session ordered by actor id.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Actor.ID().String() < out[j].Actor.ID().String() })
	return out
}

// Count returns the number of connected actors.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Notify pushes msg to the actor's outbox if it is connected. Full or closed
// outboxes drop the notice.
func (m *Manager) Notify(id uuid.UUID, msg string) {
	if s, ok := m.Get(id); ok {
		_ = s.Outbox.Push(msg)
	}
}
