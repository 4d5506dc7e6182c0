// Package audio provides the capture and playback contracts consumed by
// the voice pipeline, plus a manager that coordinates with the host UI
// which owns the actual devices.
package audio

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrPermissionDenied = errors.New("audio: microphone permission denied")
	ErrCaptureActive    = errors.New("audio: capture already active")
	ErrNoRecording      = errors.New("audio: no active recording")
	ErrPlaybackActive   = errors.New("audio: playback already active")
)

// Capture acquires the microphone. The device is exclusively owned from a
// successful Start until the returned Recording is stopped.
type Capture interface {
	Start(ctx context.Context) (Recording, error)
}

// Recording is an in-progress capture. Stop releases the microphone and
// returns everything captured so far.
type Recording interface {
	Stop() ([]byte, error)
}

// Playback plays synthesized audio. The returned channel delivers exactly
// one value when playback finishes: nil on success, an error otherwise.
// The speaker is exclusively owned until that value is delivered.
type Playback interface {
	Play(ctx context.Context, audio []byte) (<-chan error, error)
}

// Config holds audio coordination settings
type Config struct {
	SampleRate      int `json:"sample_rate"`       // Default: 16000 Hz
	Channels        int `json:"channels"`          // Default: 1 (mono)
	BitDepth        int `json:"bit_depth"`         // Default: 16
	ChunkDurationMs int `json:"chunk_duration_ms"` // Default: 100ms
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SampleRate:      16000,
		Channels:        1,
		BitDepth:        16,
		ChunkDurationMs: 100,
	}
}
