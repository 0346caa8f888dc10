package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Characteristic names a single state field of the window, as used on the wire.
type Characteristic string

const (
	CurrentPosition     Characteristic = "currentPosition"
	TargetPosition      Characteristic = "targetPosition"
	PositionState       Characteristic = "positionState"
	ObstructionDetected Characteristic = "obstructionDetected"
)

var Characteristics = []Characteristic{CurrentPosition, TargetPosition, PositionState, ObstructionDetected}

var ErrUnknownCharacteristic = errors.New("unknown characteristic")

func ParseCharacteristic(s string) (Characteristic, error) {
	for _, c := range Characteristics {
		if string(c) == s {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCharacteristic, s)
}

type Movement int

const (
	Decreasing Movement = iota
	Increasing
	Stopped
)

func (m Movement) String() string {
	switch m {
	case Decreasing:
		return "DECREASING"
	case Increasing:
		return "INCREASING"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("Movement(%d)", int(m))
	}
}

// State is the accessory state. Fields are independent of each other, the
// device is trusted as the source of truth.
type State struct {
	CurrentPosition     int
	TargetPosition      int
	PositionState       Movement
	ObstructionDetected bool
}

// Value returns the integer wire form of a characteristic.
func (s State) Value(c Characteristic) int {
	switch c {
	case CurrentPosition:
		return s.CurrentPosition
	case TargetPosition:
		return s.TargetPosition
	case PositionState:
		return int(s.PositionState)
	case ObstructionDetected:
		if s.ObstructionDetected {
			return 1
		}
	}

	return 0
}

// Update is a single state change travelling from a producer to the store.
// A non-nil Err reports that the producer could not read the characteristic.
type Update struct {
	Characteristic Characteristic
	Value          string
	Err            error
	// Polled marks values read by the status poller.
	Polled bool

	resetGen uint64
}

// Status is the full state payload returned by the device's status endpoint.
// Fields missing from the body stay nil.
type Status struct {
	CurrentPosition *int `json:"currentPosition"`
	TargetPosition  *int `json:"targetPosition"`
	PositionState   *int `json:"positionState"`
}

// UnmarshalJSON accepts any JSON number with an integral value, so 1.0 reads
// as 1. A fractional value fails the whole snapshot.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw struct {
		CurrentPosition *json.Number `json:"currentPosition"`
		TargetPosition  *json.Number `json:"targetPosition"`
		PositionState   *json.Number `json:"positionState"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.CurrentPosition, err = wholeNumber(CurrentPosition, raw.CurrentPosition); err != nil {
		return err
	}
	if s.TargetPosition, err = wholeNumber(TargetPosition, raw.TargetPosition); err != nil {
		return err
	}
	if s.PositionState, err = wholeNumber(PositionState, raw.PositionState); err != nil {
		return err
	}

	return nil
}

func wholeNumber(c Characteristic, n *json.Number) (*int, error) {
	if n == nil {
		return nil, nil
	}

	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil, fmt.Errorf("%s: %s is not an integer", c, n)
	}

	v := int(f)
	return &v, nil
}

// Updates returns the snapshot as store updates, positionState first.
func (s Status) Updates() []Update {
	var u []Update

	for _, f := range []struct {
		c Characteristic
		v *int
	}{
		{PositionState, s.PositionState},
		{CurrentPosition, s.CurrentPosition},
		{TargetPosition, s.TargetPosition},
	} {
		if f.v != nil {
			u = append(u, Update{Characteristic: f.c, Value: strconv.Itoa(*f.v)})
		}
	}

	return u
}

// Observer is notified by the store after every change or read failure.
type Observer interface {
	Updated(c Characteristic, s State)
	Failed(c Characteristic, err error)
}
