package usecase

import (
	"context"
	"sync"
	"time"
)

type cooldownKey struct {
	command string
	userID  string
}

// CooldownTracker is an in-process cooldown store keyed by (command, user).
// Each pair holds at most one pending expiry.
type CooldownTracker struct {
	mu      sync.Mutex
	expires map[cooldownKey]time.Time
}

// NewCooldownTracker creates an empty tracker
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{expires: make(map[cooldownKey]time.Time)}
}

// Allow implements repo.CooldownStore
func (t *CooldownTracker) Allow(_ context.Context, command, userID string, cooldown time.Duration, now time.Time) (bool, error) {
	key := cooldownKey{command: command, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if exp, ok := t.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	t.expires[key] = now.Add(cooldown)
	return true, nil
}

// Sweep evicts expired entries and returns how many were removed
func (t *CooldownTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, exp := range t.expires {
		if !now.Before(exp) {
			delete(t.expires, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked pairs
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.expires)
}
