package repository

import (
	"context"
	"sync"
	"time"
)

type MemoryTrackingLimiter struct {
	entries sync.Map
	mu      sync.Mutex
}

func NewMemoryTrackingLimiter() *MemoryTrackingLimiter {
	return &MemoryTrackingLimiter{}
}

type limiterEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryTrackingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	val, ok := r.entries.Load(key)

	var entry *limiterEntry
	if !ok {
		entry = &limiterEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*limiterEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.entries.Store(key, entry)
	return entry.count <= limit, nil
}
