//go:build linux

package joystick

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Constants from linux/input-event-codes.h and linux/uinput.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport   = 0x00
	btnJoystick = 0x120

	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	busVirtual = 0x06
)

// axisCodes maps channel index to evdev ABS code. The first six match the
// conventional RC adapter layout (aileron, elevator, collective, throttle,
// rudder, aux); RX/RY extend coverage to eight channels.
var axisCodes = []uint16{
	0x00, // ABS_X
	0x01, // ABS_Y
	0x02, // ABS_Z
	0x06, // ABS_THROTTLE
	0x07, // ABS_RUDDER
	0x28, // ABS_MISC
	0x03, // ABS_RX
	0x04, // ABS_RY
}

// MaxAxes is the number of axes a single virtual device can expose.
const MaxAxes = 8

// inputID mirrors struct input_id.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// userDev mirrors struct uinput_user_dev (the legacy setup interface, which
// every kernel with uinput supports).
type userDev struct {
	Name         [80]byte
	ID           inputID
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// inputEvent mirrors struct input_event on 64-bit kernels. The timestamp is
// left zero; the kernel stamps events on write.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// uinputDevice is the Linux implementation of [Device].
type uinputDevice struct {
	f    *os.File
	axes int
}

// Open registers a new virtual joystick with the kernel via /dev/uinput.
// Creation failure (missing module, no permission) is fatal to the session
// and reported with enough context to act on.
func Open(cfg Config) (Device, error) {
	if cfg.Axes < 1 || cfg.Axes > MaxAxes {
		return nil, fmt.Errorf("joystick: axis count %d out of range [1, %d]", cfg.Axes, MaxAxes)
	}

	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("joystick: open /dev/uinput (is the uinput module loaded and writable?): %w", err)
	}

	setup := func() error {
		if err := ioctl(f, uiSetEvBit, evKey); err != nil {
			return fmt.Errorf("enable EV_KEY: %w", err)
		}
		// A button bit makes the kernel classify the device as a
		// joystick rather than a tablet.
		if err := ioctl(f, uiSetKeyBit, btnJoystick); err != nil {
			return fmt.Errorf("enable BTN_JOYSTICK: %w", err)
		}
		if err := ioctl(f, uiSetEvBit, evAbs); err != nil {
			return fmt.Errorf("enable EV_ABS: %w", err)
		}
		for i := 0; i < cfg.Axes; i++ {
			if err := ioctl(f, uiSetAbsBit, int(axisCodes[i])); err != nil {
				return fmt.Errorf("enable axis %d: %w", i, err)
			}
		}

		var ud userDev
		copy(ud.Name[:], cfg.Name)
		ud.ID = inputID{Bustype: busVirtual, Vendor: 0x1209, Product: 0x5050, Version: 1}
		for i := 0; i < cfg.Axes; i++ {
			ud.AbsMin[axisCodes[i]] = cfg.Min
			ud.AbsMax[axisCodes[i]] = cfg.Max
		}

		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, &ud); err != nil {
			return fmt.Errorf("encode device setup: %w", err)
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write device setup: %w", err)
		}
		if err := ioctl(f, uiDevCreate, 0); err != nil {
			return fmt.Errorf("create device: %w", err)
		}
		return nil
	}

	if err := setup(); err != nil {
		f.Close()
		return nil, fmt.Errorf("joystick: %w", err)
	}

	return &uinputDevice{f: f, axes: cfg.Axes}, nil
}

// MoveAxis implements [Device].
func (d *uinputDevice) MoveAxis(axis int, value int32) error {
	if axis < 0 || axis >= d.axes {
		return fmt.Errorf("joystick: axis %d out of range [0, %d)", axis, d.axes)
	}
	return d.writeEvent(evAbs, axisCodes[axis], value)
}

// Sync implements [Device].
func (d *uinputDevice) Sync() error {
	return d.writeEvent(evSyn, synReport, 0)
}

// Close implements [Device].
func (d *uinputDevice) Close() error {
	destroyErr := ioctl(d.f, uiDevDestroy, 0)
	closeErr := d.f.Close()
	if destroyErr != nil {
		return fmt.Errorf("joystick: destroy device: %w", destroyErr)
	}
	return closeErr
}

func (d *uinputDevice) writeEvent(typ uint16, code uint16, value int32) error {
	var buf bytes.Buffer
	ev := inputEvent{Type: typ, Code: code, Value: value}
	if err := binary.Write(&buf, binary.LittleEndian, &ev); err != nil {
		return fmt.Errorf("joystick: encode event: %w", err)
	}
	if _, err := d.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("joystick: write event: %w", err)
	}
	return nil
}

func ioctl(f *os.File, req uint, arg int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
