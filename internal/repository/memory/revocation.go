package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
)

// RevocationRepository keeps revocation markers in process memory.
// Expiry is evaluated lazily on read and swept by Prune; no timer is held per entry.
type RevocationRepository struct {
	mu      sync.RWMutex
	entries map[string]domain.RevocationEntry
	now     func() time.Time
}

// NewRevocationRepository constructs an empty in-memory revocation store.
func NewRevocationRepository() *RevocationRepository {
	repo := &RevocationRepository{
		entries: make(map[string]domain.RevocationEntry),
	}
	repo.now = func() time.Time { return time.Now().UTC() }
	return repo
}

// WithClock overrides the internal clock for deterministic testing.
func (r *RevocationRepository) WithClock(clock func() time.Time) *RevocationRepository {
	if clock != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.now = clock
	}
	return r
}

// Put marks key as revoked for ttl starting now, replacing any previous entry.
// Non-positive TTLs and blank keys are ignored.
func (r *RevocationRepository) Put(_ context.Context, key string, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" || ttl <= 0 {
		return nil
	}

	now := r.currentTime()
	r.mu.Lock()
	r.entries[key] = domain.RevocationEntry{Identifier: key, InsertedAt: now, TTL: ttl}
	r.mu.Unlock()
	return nil
}

// IsRevoked reports whether key has an unexpired entry.
func (r *RevocationRepository) IsRevoked(_ context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}

	now := r.currentTime()
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if entry.IsActive(now) {
		return true, nil
	}

	// Expired entries are lazily pruned on access. A concurrent Put may have
	// replaced the entry since the read lock was released.
	r.mu.Lock()
	if current, ok := r.entries[key]; ok && !current.IsActive(now) {
		delete(r.entries, key)
	}
	r.mu.Unlock()
	return false, nil
}

// Delete removes key; absent keys are a no-op.
func (r *RevocationRepository) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
	return nil
}

// Prune removes entries that expired at or before now and returns how many were dropped.
func (r *RevocationRepository) Prune(now time.Time) int {
	now = now.UTC()
	removed := 0

	r.mu.Lock()
	for key, entry := range r.entries {
		if !entry.IsActive(now) {
			delete(r.entries, key)
			removed++
		}
	}
	r.mu.Unlock()
	return removed
}

// Entries returns the unexpired entries ordered by expiry, earliest first.
func (r *RevocationRepository) Entries() []domain.RevocationEntry {
	now := r.currentTime()

	r.mu.RLock()
	entries := make([]domain.RevocationEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.IsActive(now) {
			entries = append(entries, entry)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		ei, ej := entries[i].ExpiresAt(), entries[j].ExpiresAt()
		if ei.Equal(ej) {
			return entries[i].Identifier < entries[j].Identifier
		}
		return ei.Before(ej)
	})
	return entries
}

// Len returns the number of stored entries, including expired ones not yet pruned.
func (r *RevocationRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *RevocationRepository) currentTime() time.Time {
	r.mu.RLock()
	nowFn := r.now
	r.mu.RUnlock()
	if nowFn == nil {
		return time.Now().UTC()
	}
	return nowFn().UTC()
}

var _ port.LocalRevocationBackend = (*RevocationRepository)(nil)
