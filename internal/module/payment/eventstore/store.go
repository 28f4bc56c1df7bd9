// Package eventstore records which webhook deliveries have been seen so
// redelivered events can be skipped. Deduplication is best effort: a store
// failure must never fail the webhook, it is better to process twice than to
// miss a delivery.
package eventstore

import (
	"context"
	"sync"
	"time"
)

// Store marks webhook deliveries as seen.
type Store interface {
	// MarkProcessed records the event and reports whether it was already
	// recorded by an earlier delivery.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Memory is an in-process store with TTL eviction. Suitable for a single
// instance; multi-instance deployments need the Redis or Postgres store.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemory creates an in-memory store. Entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (m *Memory) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	key := provider + ":" + eventID
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Opportunistic sweep keeps the map bounded without a background timer.
	for k, expires := range m.seen {
		if now.After(expires) {
			delete(m.seen, k)
		}
	}

	if expires, ok := m.seen[key]; ok && now.Before(expires) {
		return true, nil
	}
	m.seen[key] = now.Add(m.ttl)
	return false, nil
}
