// Package idempotency binds client-supplied request keys to the order they
// produced, so a retried placement returns the first order instead of
// taking stock twice.
package idempotency

import (
	"context"
	"storefront/apperror"
	"sync"
	"time"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultPendingTTL = time.Minute
)

type Store interface {
	// Claim takes key for a new placement and returns "". When the key
	// already finished it returns the bound order id. A key claimed but not
	// finished yields apperror.ErrIdempotencyInProgress.
	Claim(ctx context.Context, key string) (string, error)
	// Complete binds key to orderID.
	Complete(ctx context.Context, key, orderID string) error
	// Abandon drops an unfinished claim so the client can retry.
	Abandon(ctx context.Context, key string) error
}

type memoryEntry struct {
	orderID string
	expires time.Time
}

type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

func NewMemoryStore(ttl, pendingTTL time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, pendingTTL: pendingTTL, now: time.Now}
}

func (s *MemoryStore) Claim(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if e.orderID == "" {
			return "", apperror.ErrIdempotencyInProgress
		}
		return e.orderID, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(s.pendingTTL)}
	return "", nil
}

func (s *MemoryStore) Complete(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{orderID: orderID, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.orderID == "" {
		delete(s.entries, key)
	}
	return nil
}
