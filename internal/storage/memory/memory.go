package memory

import (
	"context"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ports"
)

var (
	_ ports.UserRepository  = (*Store)(nil)
	_ ports.EntryRepository = (*Store)(nil)
	_ ports.HealthChecker   = (*Store)(nil)
)

// Store keeps users and entries in process memory. Data is lost on exit.
type Store struct {
	mu      sync.RWMutex
	users   map[string]core.User // by username
	entries []core.Entry
	now     func() time.Time
}

func New() *Store {
	return &Store{users: map[string]core.User{}, now: time.Now}
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return core.User{}, core.ErrUsernameTaken
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.Username] = u
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

// ListEntries returns a copy ordered by date descending; equal dates keep
// insertion order.
func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SortEntries(s.entries, core.SortDateDesc), nil
}

func (s *Store) ReplaceEntries(_ context.Context, entries []core.Entry) error {
	cp := make([]core.Entry, len(entries))
	copy(cp, entries)
	s.mu.Lock()
	s.entries = cp
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
