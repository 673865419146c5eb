//go:build !linux

package joystick

import "errors"

// MaxAxes is the number of axes a single virtual device can expose.
const MaxAxes = 8

// Open is unavailable off Linux: the virtual joystick boundary is built on
// the kernel's uinput facility.
func Open(Config) (Device, error) {
	return nil, errors.New("joystick: virtual device output requires linux uinput")
}
