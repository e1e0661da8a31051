package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidArgument reports a caller contract violation such as an empty key or a
// non-positive limit.
var ErrInvalidArgument = errors.New("rate limit: invalid argument")

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Status is a read-only view of a live counter.
type Status struct {
	Count int
	Reset time.Time
}

// Policy is a fixed-window limit: at most Limit actions per Window.
type Policy struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Validate rejects non-positive limits and windows.
func (p Policy) Validate() error {
	if p.Limit <= 0 || p.Window <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

// Limiter is a fixed-window counter backend. Allow checks and consumes in one step.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy, now time.Time) (Result, error)
	Remaining(ctx context.Context, key string, limit int, now time.Time) (int, error)
	Status(ctx context.Context, key string, now time.Time) (*Status, error)
	Reset(ctx context.Context, key string) error
}

// Observer receives every decision made by a Manager.
type Observer interface {
	ObserveDecision(action string, allowed bool)
}
