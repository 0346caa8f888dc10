package main

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const updateQueueSize = 32

// Window holds the accessory state. Producers either call Set directly or
// queue updates with Submit for the Run loop to apply. Auto-reset clears
// only happen inside Run.
type Window struct {
	mu        sync.RWMutex
	state     State
	observers []Observer
	autoReset *AutoReset

	updates chan Update
	stopped chan struct{}
	logger  *slog.Logger
}

func NewWindow(logger *slog.Logger, observers ...Observer) *Window {
	return &Window{
		observers: observers,
		updates:   make(chan Update, updateQueueSize),
		stopped:   make(chan struct{}),
		logger:    logger,
	}
}

// AddObserver must be called before the window starts receiving updates.
func (w *Window) AddObserver(o Observer) {
	w.observers = append(w.observers, o)
}

// EnableAutoReset makes every obstruction report clear itself after delay.
// The clear is queued for the Run loop and dropped if the obstruction was
// reported again in the meantime.
func (w *Window) EnableAutoReset(delay time.Duration) {
	w.autoReset = NewAutoReset(delay, func(gen uint64) {
		select {
		case w.updates <- Update{Characteristic: ObstructionDetected, Value: "0", resetGen: gen}:
		case <-w.stopped:
		}
	}, w.logger)
}

func (w *Window) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.state
}

// Set parses raw according to the characteristic's type and applies it.
// Unknown names and unparsable values are logged and dropped.
func (w *Window) Set(name, raw string) {
	w.set(name, raw, slog.LevelInfo)
}

func (w *Window) set(name, raw string, level slog.Level) {
	c, err := ParseCharacteristic(name)
	if err != nil {
		w.logger.Warn("Unknown characteristic.", "characteristic", name, "value", raw)
		return
	}

	v, err := parseValue(c, raw)
	if err != nil {
		w.logger.Warn("Unable to parse value.", "characteristic", c, "value", raw, "err", err)
		return
	}

	w.mu.Lock()
	switch c {
	case CurrentPosition:
		w.state.CurrentPosition = v
	case TargetPosition:
		w.state.TargetPosition = v
	case PositionState:
		w.state.PositionState = Movement(v)
	case ObstructionDetected:
		w.state.ObstructionDetected = v == 1
		if v == 1 && w.autoReset != nil {
			w.autoReset.Arm()
		}
	}
	s := w.state
	w.mu.Unlock()

	w.logger.Log(context.Background(), level, "Updated characteristic.", "characteristic", c, "value", v)

	w.notify(c, s)
}

// clearObstruction applies an auto-reset armed as generation gen.
func (w *Window) clearObstruction(gen uint64) {
	w.mu.Lock()
	if w.autoReset == nil || !w.autoReset.Current(gen) {
		w.mu.Unlock()
		w.logger.Debug("Dropped stale auto-reset.", "generation", gen)
		return
	}
	w.state.ObstructionDetected = false
	s := w.state
	w.mu.Unlock()

	w.logger.Info("Auto-reset obstruction detection.")

	w.notify(ObstructionDetected, s)
}

func (w *Window) notify(c Characteristic, s State) {
	for _, o := range w.observers {
		o.Updated(c, s)
	}
}

// Fail tells observers that reading c from the device failed. State is kept.
func (w *Window) Fail(c Characteristic, err error) {
	w.logger.Warn("Characteristic unavailable.", "characteristic", c, "err", err)

	for _, o := range w.observers {
		o.Failed(c, err)
	}
}

// Apply routes u to Fail, Set or a pending auto-reset. Polled values are
// logged at debug.
func (w *Window) Apply(u Update) {
	switch {
	case u.Err != nil:
		w.Fail(u.Characteristic, u.Err)
	case u.resetGen != 0:
		w.clearObstruction(u.resetGen)
	case u.Polled:
		w.set(string(u.Characteristic), u.Value, slog.LevelDebug)
	default:
		w.set(string(u.Characteristic), u.Value, slog.LevelInfo)
	}
}

// Submit queues u for the Run loop.
func (w *Window) Submit(ctx context.Context, u Update) error {
	select {
	case w.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Window) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if w.autoReset != nil {
				w.autoReset.Stop()
			}
			close(w.stopped)
			return
		case u := <-w.updates:
			w.Apply(u)
		}
	}
}

func parseValue(c Characteristic, raw string) (int, error) {
	raw = strings.TrimSpace(raw)

	if c == ObstructionDetected {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, &ParseError{What: string(c), Input: raw, Err: err}
		}

		if b {
			return 1, nil
		}
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParseError{What: string(c), Input: raw, Err: err}
	}

	return v, nil
}
