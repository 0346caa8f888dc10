package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
)

// HomeKit exposes the window as a HAP accessory and mirrors store changes
// into its characteristics.
type HomeKit struct {
	dir string
	pin string

	acc         *accessory.A
	window      *service.Window
	obstruction *characteristic.ObstructionDetected
	fault       *characteristic.StatusFault

	server *hap.Server
	logger *slog.Logger
}

func NewHomeKit(cfg *Config, logger *slog.Logger) *HomeKit {
	h := &HomeKit{
		dir:    cfg.HomeKit.Dir,
		pin:    cfg.HomeKit.Pin,
		logger: logger,
	}

	h.acc = accessory.New(accessory.Info{
		Name:         cfg.Name,
		SerialNumber: cfg.Serial,
		Manufacturer: cfg.Manufacturer,
		Model:        cfg.Model,
		Firmware:     cfg.Firmware,
	}, accessory.TypeWindow)

	h.acc.IdentifyFunc = func(r *http.Request) {
		h.logger.Info("Identify requested.")
	}

	h.window = service.NewWindow()

	h.obstruction = characteristic.NewObstructionDetected()
	h.window.AddC(h.obstruction.C)

	h.fault = characteristic.NewStatusFault()
	h.window.AddC(h.fault.C)

	h.acc.AddS(h.window.S)

	return h
}

// OnTargetPosition registers fn for target position writes from HomeKit
// controllers. A non-nil error is reported back to the controller.
func (h *HomeKit) OnTargetPosition(fn func(int) error) {
	h.window.TargetPosition.OnSetRemoteValue(func(v int) error {
		h.logger.Debug("Target position requested.", "value", v)
		return fn(v)
	})
}

func (h *HomeKit) Updated(c Characteristic, s State) {
	switch c {
	case CurrentPosition:
		h.window.CurrentPosition.SetValue(s.CurrentPosition)
	case TargetPosition:
		h.window.TargetPosition.SetValue(s.TargetPosition)
	case PositionState:
		h.window.PositionState.SetValue(int(s.PositionState))
	case ObstructionDetected:
		h.obstruction.SetValue(s.ObstructionDetected)
	}

	if h.fault.Value() != characteristic.StatusFaultNoFault {
		h.fault.SetValue(characteristic.StatusFaultNoFault)
	}
}

func (h *HomeKit) Failed(c Characteristic, err error) {
	h.logger.Debug("Flagging accessory fault.", "characteristic", c, "err", err)
	h.fault.SetValue(characteristic.StatusFaultGeneralFault)
}

func (h *HomeKit) constructServer() (*hap.Server, error) {
	fs := hap.NewFsStore(h.dir)

	server, err := hap.NewServer(fs, h.acc)
	if err != nil {
		return nil, fmt.Errorf("construct HomeKit server: %w", err)
	}

	pin := h.pin

	if pin == "" {
		d, err := fs.Get("serverPin")
		pin = string(d)

		if err != nil {
			for {
				pin = fmt.Sprintf("%08d", rand.Intn(99999999))

				if _, invalid := hap.InvalidPins[pin]; !invalid {
					fs.Set("serverPin", []byte(pin))
					break
				}
			}
		}
	}

	server.Pin = pin

	return server, nil
}

// ListenAndServe runs the HAP server until ctx is done.
func (h *HomeKit) ListenAndServe(ctx context.Context) error {
	server, err := h.constructServer()
	if err != nil {
		return err
	}
	h.server = server

	h.logger.Info("Starting HomeKit server.", "pin", server.Pin, "dir", h.dir)

	if err := server.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("HomeKit server: %w", err)
	}

	return nil
}
