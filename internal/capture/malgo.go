package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Miniaudio is the real capture backend, built on miniaudio through
// github.com/gen2brain/malgo. One Miniaudio holds one backend context;
// create it once and close it after all streams are done.
type Miniaudio struct {
	ctx *malgo.AllocatedContext
}

// NewMiniaudio initialises the default audio backend for this platform.
func NewMiniaudio() (*Miniaudio, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}
	return &Miniaudio{ctx: ctx}, nil
}

func (m *Miniaudio) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	devices := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		devices[i] = DeviceInfo{Name: info.Name(), Default: info.IsDefault != 0}
	}
	return devices, nil
}

func (m *Miniaudio) Open(name string, cfg Config, onSamples func([]int16)) (Stream, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	devices := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		devices[i] = DeviceInfo{Name: info.Name(), Default: info.IsDefault != 0}
	}
	idx, err := matchDevice(name, devices)
	if err != nil {
		return nil, err
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = 1
	dc.Capture.DeviceID = infos[idx].ID.Pointer()
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInFrames = uint32(cfg.Batch)
	dc.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		// Runs on the audio thread: convert, copy, hand off. No decoding,
		// no blocking, no allocation beyond the batch copy.
		Data: func(_, input []byte, frameCount uint32) {
			batch := make([]int16, frameCount)
			for i := range batch {
				batch[i] = int16(binary.LittleEndian.Uint16(input[2*i:]))
			}
			onSamples(batch)
		},
	}
	dev, err := malgo.InitDevice(m.ctx.Context, dc, callbacks)
	if err != nil {
		return nil, fmt.Errorf("capture: open %q: %w", devices[idx].Name, err)
	}
	slog.Info("capture device opened",
		"device", devices[idx].Name,
		"sample_rate", cfg.SampleRate,
		"batch", cfg.Batch)
	return &miniaudioStream{dev: dev}, nil
}

func (m *Miniaudio) Close() error {
	err := m.ctx.Uninit()
	m.ctx.Free()
	if err != nil {
		return fmt.Errorf("capture: close audio context: %w", err)
	}
	return nil
}

type miniaudioStream struct {
	dev *malgo.Device
}

func (s *miniaudioStream) Start() error {
	if err := s.dev.Start(); err != nil {
		return fmt.Errorf("capture: start stream: %w", err)
	}
	return nil
}

func (s *miniaudioStream) Close() error {
	s.dev.Uninit()
	return nil
}
