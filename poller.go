package main

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type StatusSource interface {
	Status(ctx context.Context) (Status, error)
}

type UpdateSink interface {
	Submit(ctx context.Context, u Update) error
}

// Poller fetches the device status once at start and then on every tick.
// Each fetch runs on its own goroutine so a slow device never delays the
// next tick.
type Poller struct {
	Source   StatusSource
	Sink     UpdateSink
	Interval time.Duration
	logger   *slog.Logger
}

func NewPoller(source StatusSource, sink UpdateSink, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{Source: source, Sink: sink, Interval: interval, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	go p.Poll(ctx)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.Poll(ctx)
		}
	}
}

// Poll performs one fetch and queues the result.
func (p *Poller) Poll(ctx context.Context) {
	s, err := p.Source.Status(ctx)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			p.logger.Warn("Error parsing status.", "err", err)
			return
		}

		p.logger.Warn("Error getting status.", "err", err)
		p.submit(ctx, Update{Characteristic: PositionState, Err: err})
		return
	}

	for _, u := range s.Updates() {
		u.Polled = true
		p.submit(ctx, u)
	}
}

func (p *Poller) submit(ctx context.Context, u Update) {
	if err := p.Sink.Submit(ctx, u); err != nil {
		p.logger.Debug("Dropped status update.", "characteristic", u.Characteristic, "err", err)
	}
}
