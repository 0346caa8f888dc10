package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Bridge wires the device, the state store and its observers together.
type Bridge struct {
	cfg *Config

	window     *Window
	device     *Device
	dispatcher *Dispatcher
	poller     *Poller
	receiver   *Receiver
	homekit    *HomeKit
	mqtt       *MQTT

	logger *slog.Logger
}

func NewBridge(cfg *Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{cfg: cfg, logger: logger}

	b.homekit = NewHomeKit(cfg, logger.With("component", "homekit"))
	b.window = NewWindow(logger.With("component", "window"), b.homekit)

	if cfg.AutoReset {
		b.window.EnableAutoReset(cfg.ResetDelay())
	}

	if cfg.MQTT.URL != "" {
		m, err := NewMQTT(cfg.MQTT.URL, cfg.MQTT.Topic, b.window, logger.With("component", "mqtt"))
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		b.mqtt = m
		b.window.AddObserver(m)
	}

	b.device = NewDevice(cfg, logger.With("component", "device"))
	b.dispatcher = NewDispatcher(b.device, b.window, logger.With("component", "dispatcher"))
	b.poller = NewPoller(b.device, b.window, cfg.PollPeriod(), logger.With("component", "poller"))
	b.receiver = NewReceiver(cfg.Port, b.window, logger.With("component", "receiver"))

	b.homekit.OnTargetPosition(func(v int) error {
		return b.dispatcher.SetTargetPosition(context.Background(), v)
	})

	return b, nil
}

// Run blocks until ctx is done or a server fails to start.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("Starting bridge.", "name", b.cfg.Name, "apiroute", b.cfg.APIRoute, "pollInterval", b.cfg.PollPeriod(), "autoReset", b.cfg.AutoReset)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.window.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return b.receiver.ListenAndServe(ctx)
	})

	g.Go(func() error {
		b.poller.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return b.homekit.ListenAndServe(ctx)
	})

	if b.mqtt != nil {
		g.Go(func() error {
			if err := b.mqtt.Start(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			<-ctx.Done()
			return b.mqtt.Stop()
		})
	}

	return g.Wait()
}
