package reaction

import (
	"sort"
	"sync"
	"time"
)

// Registry tracks timed reaction triggers: which users should have a given
// emoji added to their messages and until when. It is an owned component;
// callers hold an instance, there is no package-level state.
type Registry struct {
	mu     sync.RWMutex
	timers map[string]map[string]time.Time // emoji -> user id -> expiry
}

// NewRegistry creates an empty reaction-timer registry.
func NewRegistry() *Registry {
	return &Registry{timers: make(map[string]map[string]time.Time)}
}

// Add marks userID for emoji until the given expiry. An earlier existing
// expiry is extended, a later one is kept.
func (r *Registry) Add(emoji, userID string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := r.timers[emoji]
	if users == nil {
		users = make(map[string]time.Time)
		r.timers[emoji] = users
	}
	if current, ok := users[userID]; !ok || until.After(current) {
		users[userID] = until
	}
}

// Remove clears the timer for emoji and userID.
func (r *Registry) Remove(emoji, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if users := r.timers[emoji]; users != nil {
		delete(users, userID)
		if len(users) == 0 {
			delete(r.timers, emoji)
		}
	}
}

// Active reports whether the timer for emoji and userID is still running.
func (r *Registry) Active(emoji, userID string, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := r.timers[emoji]
	if users == nil {
		return false
	}
	until, ok := users[userID]
	return ok && now.Before(until)
}

// ActiveFor returns the emoji with running timers for userID, sorted for
// deterministic reaction order.
func (r *Registry) ActiveFor(userID string, now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for emoji, users := range r.timers {
		if until, ok := users[userID]; ok && now.Before(until) {
			out = append(out, emoji)
		}
	}
	sort.Strings(out)
	return out
}

// Sweep drops every expired timer.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for emoji, users := range r.timers {
		for userID, until := range users {
			if !now.Before(until) {
				delete(users, userID)
			}
		}
		if len(users) == 0 {
			delete(r.timers, emoji)
		}
	}
}
