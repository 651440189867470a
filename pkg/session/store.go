package session

import (
	"sync"
	"time"

	"github.com/solari-labs/concierge/pkg/flow"
)

// Clock abstracts time for TTL tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// Store keeps sessions keyed by id. Acquire hands out exclusive access to one
// session, serializing turns on the same key while leaving other keys fully
// concurrent. Sessions idle past the TTL are evicted lazily on acquire.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	clock   Clock
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock injects a deterministic clock.
func WithClock(c Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire returns the session for key, creating it if absent or expired, with
// its per-key lock held. The caller must invoke release when the turn is done.
func (s *Store) Acquire(key string) (*Session, func()) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && s.expired(e.sess) {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		e = &entry{sess: &Session{
			ID:       key,
			Stage:    StageNew,
			Entities: make(flow.EntityBag),
		}}
		s.entries[key] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	sess := e.sess
	return sess, func() {
		sess.UpdatedAt = s.clock.Now()
		e.mu.Unlock()
	}
}

// Delete removes the session for key. Any in-flight turn keeps its pointer;
// the next Acquire starts fresh.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep drops every expired session and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if s.expired(e.sess) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(sess *Session) bool {
	if sess.UpdatedAt.IsZero() {
		return false
	}
	return s.clock.Now().Sub(sess.UpdatedAt) > s.ttl
}
