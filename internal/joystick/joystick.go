// Package joystick defines the virtual joystick boundary and its Linux
// uinput implementation.
package joystick

// Device is one virtual joystick exposing a fixed set of absolute axes.
// Axis values written with MoveAxis become visible to readers only after
// Sync, matching the evdev event/report model.
//
// Implementations need not be safe for concurrent use; ppmjoy drives the
// device from the single decode goroutine (plus one final Close).
type Device interface {
	// MoveAxis stages an absolute value for the given axis index.
	MoveAxis(axis int, value int32) error

	// Sync flushes staged axis values as one input report.
	Sync() error

	// Close destroys the virtual device. The owner is expected to drive
	// the axes to neutral and Sync before closing, so the device never
	// disappears while reporting a stale deflection.
	Close() error
}

// Config describes the device to register with the host's virtual-input
// facility.
type Config struct {
	// Name is the device name shown to applications.
	Name string

	// Axes is the number of absolute axes, one per decoded channel.
	Axes int

	// Min and Max bound the reported axis value range.
	Min int32
	Max int32
}
