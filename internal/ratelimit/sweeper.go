package ratelimit

import (
	"context"
	"time"

	internalsettings "github.com/lmslight/lms-core/internal/settings"

	log "github.com/sirupsen/logrus"
)

// Sweepable is a registry whose expired counters can be reclaimed.
type Sweepable interface {
	Sweep(now time.Time) int
}

// Sweeper periodically reclaims expired counters. Lookups expire entries lazily, so the
// sweeper only bounds memory.
type Sweeper struct {
	interval time.Duration
	nowFn    func() time.Time
	targets  []Sweepable
}

// NewSweeper constructs a Sweeper; a non-positive interval uses the default.
func NewSweeper(interval time.Duration, nowFn func() time.Time, targets ...Sweepable) *Sweeper {
	if interval <= 0 {
		interval = internalsettings.DefaultSweepInterval
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Sweeper{interval: interval, nowFn: nowFn, targets: targets}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs one pass over every target and returns the number of removed counters.
func (s *Sweeper) SweepOnce() int {
	now := s.nowFn()
	removed := 0
	for _, target := range s.targets {
		if target == nil {
			continue
		}
		removed += target.Sweep(now)
	}
	if removed > 0 {
		log.WithField("removed", removed).Debug("rate limit: swept expired counters")
	}
	return removed
}

// Start runs the sweeper in the background; stop cancels it and waits for it to exit.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
