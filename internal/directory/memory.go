package directory

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]User
	window time.Duration
}

// NewMemoryStore creates a MemoryStore with the given token validity window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{users: make(map[string]User), window: window}
}

// Get returns a copy of the user or (nil, nil) when absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

// UpsertRegistrationToken creates or refreshes the pending row.
func (s *MemoryStore) UpsertRegistrationToken(_ context.Context, id string, token int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.ID = id
	u.PendingToken = &token
	since := now
	u.PendingSince = &since
	s.users[id] = u
	return nil
}

// LiveTokens returns tokens still inside their validity window.
func (s *MemoryStore) LiveTokens(_ context.Context, now time.Time) (map[int64]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[int64]struct{})
	for _, u := range s.users {
		if u.PendingToken != nil && u.PendingSince != nil && now.Sub(*u.PendingSince) <= s.window {
			live[*u.PendingToken] = struct{}{}
		}
	}
	return live, nil
}

// SetTimezoneByToken confirms a registration by token, consuming it.
func (s *MemoryStore) SetTimezoneByToken(_ context.Context, token int64, zone string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.PendingToken == nil || *u.PendingToken != token {
			continue
		}
		if u.PendingSince == nil || now.Sub(*u.PendingSince) > s.window {
			return "", ErrExpired
		}
		u.Timezone = zone
		u.PendingToken = nil
		u.PendingSince = nil
		s.users[id] = u
		return id, nil
	}
	return "", ErrNotFound
}

// Delete removes the row.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}
