package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count int
	reset time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.reset)
}

// MemoryLimiter implements a fixed-window in-memory rate limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow consumes one unit for key when the current window has room.
func (l *MemoryLimiter) Allow(_ context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if key == "" {
		return Result{}, ErrInvalidArgument
	}
	if errValidate := policy.Validate(); errValidate != nil {
		return Result{}, errValidate
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.counters[key]
	if entry == nil || entry.expired(now) {
		reset := now.Add(policy.Window)
		l.counters[key] = &memoryEntry{count: 1, reset: reset}
		return Result{Allowed: true, Remaining: policy.Limit - 1, Reset: reset}, nil
	}
	if entry.count >= policy.Limit {
		return Result{Allowed: false, Remaining: 0, Reset: entry.reset}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: policy.Limit - entry.count, Reset: entry.reset}, nil
}

// Remaining reports how many units Allow would still grant, without consuming.
func (l *MemoryLimiter) Remaining(_ context.Context, key string, limit int, now time.Time) (int, error) {
	if key == "" || limit <= 0 {
		return 0, ErrInvalidArgument
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.counters[key]
	if entry == nil {
		return limit, nil
	}
	if entry.expired(now) {
		delete(l.counters, key)
		return limit, nil
	}
	remaining := limit - entry.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Status returns the live counter for key, or nil when none exists.
func (l *MemoryLimiter) Status(_ context.Context, key string, now time.Time) (*Status, error) {
	if key == "" {
		return nil, ErrInvalidArgument
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.counters[key]
	if entry == nil {
		return nil, nil
	}
	if entry.expired(now) {
		delete(l.counters, key)
		return nil, nil
	}
	return &Status{Count: entry.count, Reset: entry.reset}, nil
}

// Reset drops the counter for key.
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	if key == "" {
		return ErrInvalidArgument
	}
	l.mu.Lock()
	delete(l.counters, key)
	l.mu.Unlock()
	return nil
}

// Sweep deletes every expired counter and returns how many were removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.counters {
		if entry.expired(now) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked counters, expired or not.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
