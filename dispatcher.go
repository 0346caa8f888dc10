package main

import (
	"context"
	"log/slog"
	"strconv"
)

type Commander interface {
	Command(ctx context.Context, name, value string) error
}

// Dispatcher turns target position requests from HomeKit into device
// commands. It does not wait for the device to report the new position.
type Dispatcher struct {
	device Commander
	sink   UpdateSink
	logger *slog.Logger
}

func NewDispatcher(device Commander, sink UpdateSink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{device: device, sink: sink, logger: logger}
}

func (d *Dispatcher) SetTargetPosition(ctx context.Context, value int) error {
	v := strconv.Itoa(value)

	if err := d.device.Command(ctx, "setTargetPosition", v); err != nil {
		d.logger.Warn("Error setting target position.", "value", value, "err", err)
		return err
	}

	d.logger.Info("Set target position.", "value", value)

	// Runs inside the HomeKit write handler, so the store must not call back
	// into HomeKit from this goroutine.
	if err := d.sink.Submit(ctx, Update{Characteristic: TargetPosition, Value: v}); err != nil {
		d.logger.Debug("Dropped target position update.", "err", err)
	}

	return nil
}
