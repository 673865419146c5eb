// Package mock provides an in-memory joystick.Device for tests.
package mock

import (
	"errors"
	"sync"
)

// AxisEvent is one MoveAxis call captured by the mock.
type AxisEvent struct {
	Axis  int
	Value int32
}

// Device records every call made against it. Safe for concurrent use.
type Device struct {
	mu     sync.Mutex
	events []AxisEvent
	syncs  int
	closed bool

	// FailMove, when set, is returned by every MoveAxis call.
	FailMove error
}

// New creates an empty mock device.
func New() *Device { return &Device{} }

// MoveAxis implements joystick.Device.
func (d *Device) MoveAxis(axis int, value int32) error {
	if d.FailMove != nil {
		return d.FailMove
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("mock: device closed")
	}
	d.events = append(d.events, AxisEvent{Axis: axis, Value: value})
	return nil
}

// Sync implements joystick.Device.
func (d *Device) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("mock: device closed")
	}
	d.syncs++
	return nil
}

// Close implements joystick.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Events returns a copy of all captured axis events.
func (d *Device) Events() []AxisEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]AxisEvent, len(d.events))
	copy(out, d.events)
	return out
}

// Syncs returns the number of Sync calls.
func (d *Device) Syncs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncs
}

// Closed reports whether Close has been called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Reset clears captured events (not the closed state).
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
	d.syncs = 0
}
