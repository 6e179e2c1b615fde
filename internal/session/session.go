// Package session ties a grid load to the matching save. Sessions are
// explicit tokens handed to the client and back; the reconciliation core
// itself stays stateless.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxAge bounds how long an abandoned session survives.
const maxAge = 12 * time.Hour

// Session identifies one grid view. A save must present the session id it was
// loaded under; a stale or unknown id forces a reload.
type Session struct {
	ID        uuid.UUID
	Table     string
	CreatedAt time.Time
}

// Store is an in-memory session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	now      func() time.Time
}

// NewStore creates an empty session registry.
func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		now:      time.Now,
	}
}

// Create registers a new session for one table snapshot.
func (s *Store) Create(table string) *Session {
	sess := &Session{
		ID:        uuid.New(),
		Table:     table,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session with the given id, if it exists and has not aged
// out.
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || s.now().Sub(sess.CreatedAt) > maxAge {
		return nil, false
	}
	return sess, true
}

// Delete removes a session after its save completes.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// prune drops aged-out sessions. Caller holds the write lock.
func (s *Store) prune() {
	cutoff := s.now().Add(-maxAge)
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
