package main

import (
	"log/slog"
	"sync"
	"time"
)

const DefaultAutoResetDelay = 5 * time.Second

// AutoReset runs reset once delay has passed since the most recent Arm,
// passing the generation that armed it. Arming again while a reset is
// pending replaces it.
type AutoReset struct {
	mu         sync.Mutex
	delay      time.Duration
	reset      func(gen uint64)
	timer      *time.Timer
	generation uint64
	logger     *slog.Logger
}

func NewAutoReset(delay time.Duration, reset func(gen uint64), logger *slog.Logger) *AutoReset {
	if delay <= 0 {
		delay = DefaultAutoResetDelay
	}

	return &AutoReset{delay: delay, reset: reset, logger: logger}
}

func (a *AutoReset) Arm() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.logger.Debug("Replacing pending auto-reset.")
	}

	a.generation++
	gen := a.generation

	a.logger.Info("Waiting to auto-reset obstruction detection.", "delay", a.delay)

	a.timer = time.AfterFunc(a.delay, func() {
		a.mu.Lock()
		// A timer that already fired while being replaced must not reset.
		if gen != a.generation {
			a.mu.Unlock()
			return
		}
		a.timer = nil
		a.mu.Unlock()

		a.reset(gen)
	})
}

// Current reports whether gen is still the latest Arm. It turns false once
// the reset is re-armed or stopped.
func (a *AutoReset) Current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return gen == a.generation
}

// Pending reports whether a reset is scheduled.
func (a *AutoReset) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.timer != nil
}

func (a *AutoReset) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.generation++
}
