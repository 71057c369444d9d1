package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jangwonii/contract-gaurdian/config"
	"github.com/jangwonii/contract-gaurdian/workflow"
)

// ControllerFactory builds the controller for a new user session
type ControllerFactory func(username string) *workflow.Controller

type sessionEntry struct {
	controller *workflow.Controller
	createdAt  time.Time
	lastUsed   time.Time
}

// SessionStore keeps one workflow controller per user in memory
type SessionStore struct {
	sessions    map[string]*sessionEntry
	mu          sync.Mutex
	maxSessions int // Maximum sessions to keep, 0 = unlimited
	factory     ControllerFactory
	now         func() time.Time
}

// NewSessionStore creates a store. A negative max_sessions means unlimited.
func NewSessionStore(cfg *config.StoreConfig, factory ControllerFactory) *SessionStore {
	maxSessions := cfg.MaxSessions
	if maxSessions < 0 {
		maxSessions = 0
	}
	slog.Info("session store initialized", "max_sessions", maxSessions)
	return &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		maxSessions: maxSessions,
		factory:     factory,
		now:         time.Now,
	}
}

// Get returns the user's controller, creating it on first use
func (s *SessionStore) Get(username string) *workflow.Controller {
	s.mu.Lock()
	entry, ok := s.sessions[username]
	if ok {
		entry.lastUsed = s.now()
		s.mu.Unlock()
		return entry.controller
	}

	now := s.now()
	entry = &sessionEntry{
		controller: s.factory(username),
		createdAt:  now,
		lastUsed:   now,
	}
	s.sessions[username] = entry
	evicted := s.cleanupIfNeeded(username)
	s.mu.Unlock()

	// Close waits for background work, so it runs outside the lock
	for _, c := range evicted {
		c.Close()
	}
	return entry.controller
}

// Lookup returns the user's controller without creating one
func (s *SessionStore) Lookup(username string) (*workflow.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[username]
	if !ok {
		return nil, false
	}
	entry.lastUsed = s.now()
	return entry.controller, true
}

// Delete detaches the user's session and stops its background work
func (s *SessionStore) Delete(username string) bool {
	s.mu.Lock()
	entry, ok := s.sessions[username]
	delete(s.sessions, username)
	s.mu.Unlock()

	if ok {
		entry.controller.Close()
	}
	return ok
}

// CloseAll closes every session; used on shutdown
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(c *workflow.Controller) {
			defer wg.Done()
			c.Close()
		}(entry.controller)
	}
	wg.Wait()
}

// cleanupIfNeeded removes the least recently used sessions if the store
// exceeds maxSessions. keep is never evicted. Must be called with lock held;
// the caller closes the returned controllers.
func (s *SessionStore) cleanupIfNeeded(keep string) []*workflow.Controller {
	if s.maxSessions <= 0 || len(s.sessions) <= s.maxSessions {
		return nil
	}

	type candidate struct {
		username string
		entry    *sessionEntry
	}
	candidates := make([]candidate, 0, len(s.sessions))
	for username, entry := range s.sessions {
		if username != keep {
			candidates = append(candidates, candidate{username, entry})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].entry.lastUsed.Before(candidates[j].entry.lastUsed)
	})

	removeCount := len(s.sessions) - s.maxSessions
	evicted := make([]*workflow.Controller, 0, removeCount)
	for i := 0; i < removeCount && i < len(candidates); i++ {
		slog.Info("evicting idle session",
			"username", candidates[i].username,
			"created_at", candidates[i].entry.createdAt,
			"last_used", candidates[i].entry.lastUsed,
		)
		delete(s.sessions, candidates[i].username)
		evicted = append(evicted, candidates[i].entry.controller)
	}
	return evicted
}

// Count returns the number of live sessions
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
