package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type (
	entry struct {
		mu sync.Mutex
		s  *Session
	}

	// Manager hands out per-user sessions and serializes all work on one
	// user. The flows mutate session fields without internal locking;
	// correctness relies on Do holding the per-user lock for the whole
	// transition, including remote calls. Different users proceed
	// concurrently.
	Manager struct {
		mu      sync.Mutex
		entries map[int64]*entry
		now     func() time.Time
	}
)

func NewManager() *Manager {
	return &Manager{
		entries: make(map[int64]*entry, 64),
		now:     time.Now,
	}
}

// Do runs fn with exclusive access to the user's session. Events for the same
// user queue behind each other; there is no preemption of in-flight work.
func (m *Manager) Do(userID int64, fn func(s *Session) error) error {
	e := m.entryFor(userID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.s.LastSeen = m.now()
	return fn(e.s)
}

func (m *Manager) entryFor(userID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		e = &entry{s: &Session{UserID: userID}}
		m.entries[userID] = e
	}
	return e
}

// Len reports the number of in-memory sessions, for the ops endpoint.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Evict drops sessions idle for longer than ttl. A busy session (lock held)
// is skipped. Evicting an authenticated session is safe: the next event
// rebuilds it from the persisted token row.
func (m *Manager) Evict(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for userID, e := range m.entries {
		if !e.mu.TryLock() {
			continue
		}
		idle := m.now().Sub(e.s.LastSeen)
		e.mu.Unlock()

		if idle > ttl {
			delete(m.entries, userID)
			evicted++
		}
	}
	return evicted
}

// StartEviction loops until ctx is done, evicting idle sessions.
func (m *Manager) StartEviction(ctx context.Context, interval, ttl time.Duration, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if n := m.Evict(ttl); n > 0 {
				log.DebugContext(ctx, "evicted idle sessions", "count", n)
			}
		}
	}
}
