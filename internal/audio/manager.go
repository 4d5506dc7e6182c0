package audio

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager implements the Capture and Playback contracts. Actual device I/O
// happens in the host UI layer; the manager coordinates ownership, buffers
// captured chunks, and relays the playback-finished event.
type Manager struct {
	config *Config
	logger zerolog.Logger

	mu           sync.Mutex
	micAvailable bool
	active       *managedRecording
	playing      bool
	playDone     chan error
	pending      []byte
}

// NewManager creates a new audio manager
func NewManager(config *Config, logger zerolog.Logger) *Manager {
	if config == nil {
		config = DefaultConfig()
	}

	return &Manager{
		config:       config,
		logger:       logger.With().Str("component", "audio").Logger(),
		micAvailable: true,
	}
}

// SetMicrophoneAvailable records whether the host granted microphone
// access. While false, Start fails with ErrPermissionDenied.
func (m *Manager) SetMicrophoneAvailable(available bool) {
	m.mu.Lock()
	m.micAvailable = available
	m.mu.Unlock()

	m.logger.Info().Bool("available", available).Msg("Microphone availability updated")
}

// Start acquires the microphone and begins accumulating chunks
func (m *Manager) Start(ctx context.Context) (Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.micAvailable {
		return nil, ErrPermissionDenied
	}
	if m.active != nil {
		return nil, ErrCaptureActive
	}

	rec := &managedRecording{
		manager: m,
		started: time.Now(),
		// 10 seconds at 16kHz mono 16-bit
		buffer: make([]byte, 0, m.config.SampleRate*m.config.BitDepth/8*10),
	}
	m.active = rec

	m.logger.Debug().Msg("Capture started")
	return rec, nil
}

// ProcessChunk appends one base64-encoded chunk from the host to the
// active recording.
func (m *Manager) ProcessChunk(audioBase64 string) error {
	data, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to decode audio chunk")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoRecording
	}

	m.active.buffer = append(m.active.buffer, data...)
	return nil
}

// Play takes exclusive ownership of the playback device and stages audio
// for the host to play. The host signals completion through
// NotifyPlaybackFinished, which resolves the returned channel.
func (m *Manager) Play(ctx context.Context, audio []byte) (<-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playing {
		return nil, ErrPlaybackActive
	}

	m.playing = true
	m.playDone = make(chan error, 1)
	m.pending = audio

	m.logger.Debug().Int("bytes", len(audio)).Msg("Audio staged for playback")
	return m.playDone, nil
}

// PendingPlayback returns the audio the host should play, or nil
func (m *Manager) PendingPlayback() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// NotifyPlaybackFinished reports that the host finished (or failed)
// playing the staged audio, releasing the playback device.
func (m *Manager) NotifyPlaybackFinished(err error) {
	m.mu.Lock()
	done := m.playDone
	m.playing = false
	m.playDone = nil
	m.pending = nil
	m.mu.Unlock()

	if done != nil {
		done <- err
	}

	if err != nil {
		m.logger.Error().Err(err).Msg("Playback finished with error")
	} else {
		m.logger.Debug().Msg("Playback finished")
	}
}

// IsPlaying reports whether playback is in progress
func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Config returns the current audio configuration
func (m *Manager) Config() *Config {
	return m.config
}

// release clears the active recording slot
func (m *Manager) release(rec *managedRecording) {
	m.mu.Lock()
	if m.active == rec {
		m.active = nil
	}
	m.mu.Unlock()
}

// managedRecording accumulates host-fed chunks until stopped
type managedRecording struct {
	manager *Manager
	started time.Time
	buffer  []byte
	stopped bool
}

// Stop releases the microphone and returns the captured audio. Calling
// Stop twice returns ErrNoRecording.
func (r *managedRecording) Stop() ([]byte, error) {
	r.manager.mu.Lock()
	if r.stopped {
		r.manager.mu.Unlock()
		return nil, ErrNoRecording
	}
	r.stopped = true
	audio := make([]byte, len(r.buffer))
	copy(audio, r.buffer)
	duration := time.Since(r.started)
	r.manager.mu.Unlock()

	r.manager.release(r)

	r.manager.logger.Debug().
		Int("bytes", len(audio)).
		Dur("duration", duration).
		Msg("Capture stopped")

	return audio, nil
}
