package storage

import (
	"sync"
	"time"

	"github.com/ironsheep/photo-edit-mcp/internal/studio"
)

// Entry is a stored studio session with its bookkeeping.
type Entry struct {
	ID       string
	Session  *studio.Session
	Created  time.Time
	LastUsed time.Time
}

// SessionStore keeps one studio session per browser client. Nothing is
// persisted; sessions live as long as the process or until evicted.
type SessionStore struct {
	sessions map[string]*Entry
	mu       sync.RWMutex
	now      func() time.Time
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Entry),
		now:      time.Now,
	}
}

func (s *SessionStore) Get(id string) (*studio.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.sessions[id]
	if !exists {
		return nil, false
	}
	e.LastUsed = s.now()
	return e.Session, true
}

func (s *SessionStore) Set(id string, session *studio.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sessions[id] = &Entry{ID: id, Session: session, Created: now, LastUsed: now}
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// EvictIdle removes sessions unused for longer than ttl and returns how many
// were removed.
func (s *SessionStore) EvictIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, e := range s.sessions {
		if e.LastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
