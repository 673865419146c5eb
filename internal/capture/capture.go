// Package capture acquires raw PCM sample batches from an audio input device.
package capture

// DeviceInfo describes one enumerable capture device.
type DeviceInfo struct {
	Name    string
	Default bool
}

// Config selects the capture format. Samples are always S16 mono.
type Config struct {
	// SampleRate in Hz.
	SampleRate int
	// Batch is the preferred number of samples per callback invocation.
	Batch int
}

// Source opens capture streams. Implementations: the miniaudio backend in
// this package, fakes in tests.
type Source interface {
	// Devices enumerates candidate capture devices.
	Devices() ([]DeviceInfo, error)
	// Open resolves name against the enumerated devices (case-insensitive
	// substring; empty selects the default) and prepares a stream that
	// invokes onSamples from the audio callback. The callback must hand
	// batches off quickly and never block.
	Open(name string, cfg Config, onSamples func([]int16)) (Stream, error)
	// Close releases the backend context. Open streams must be closed first.
	Close() error
}

// Stream is one running capture session.
type Stream interface {
	Start() error
	Close() error
}
