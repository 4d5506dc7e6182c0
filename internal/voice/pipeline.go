// Package voice drives the capture -> transcribe -> reply -> synthesize ->
// play pipeline as an explicit state machine.
package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/companion/internal/audio"
	"github.com/normanking/companion/internal/backend"
	"github.com/normanking/companion/internal/bus"
	"github.com/normanking/companion/internal/chat"
	"github.com/normanking/companion/internal/provider"
)

// Common errors
var (
	ErrNotIdle      = errors.New("voice: pipeline not idle")
	ErrNotRecording = errors.New("voice: no recording in progress")
	ErrNoError      = errors.New("voice: no error to acknowledge")
)

// Config configures the voice pipeline
type Config struct {
	Voice string // TTS voice tag (alloy, echo, fable, onyx, nova, shimmer)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Voice: "nova"}
}

// Pipeline coordinates one voice interaction at a time. Once a recording
// is stopped the remaining stages run to completion or failure; only the
// Recording stage supports a user-initiated exit.
type Pipeline struct {
	config     *Config
	capture    audio.Capture
	playback   audio.Playback
	dispatcher *chat.Dispatcher
	backend    *backend.Client
	eventBus   *bus.EventBus
	logger     zerolog.Logger

	// Voice mode exposes no provider selection: it names no provider,
	// leaving the choice to the backend, and keeps fallback disabled.
	pref provider.Preference

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	rec        audio.Recording
	transcript string
	reply      string
	errMessage string
}

// NewPipeline creates the single voice pipeline instance
func NewPipeline(config *Config, capture audio.Capture, playback audio.Playback,
	dispatcher *chat.Dispatcher, client *backend.Client,
	eventBus *bus.EventBus, logger zerolog.Logger) *Pipeline {

	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pipeline{
		config:     config,
		capture:    capture,
		playback:   playback,
		dispatcher: dispatcher,
		backend:    client,
		eventBus:   eventBus,
		logger:     logger.With().Str("component", "voice-pipeline").Logger(),
		pref:       provider.Preference{FallbackEnabled: false},
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
	}
}

// State returns the current pipeline state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transcript returns the most recent transcription
func (p *Pipeline) Transcript() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcript
}

// Reply returns the most recent assistant reply
func (p *Pipeline) Reply() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reply
}

// ErrorMessage returns the user-facing message for the current Error state
func (p *Pipeline) ErrorMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMessage
}

// StartRecording acquires the microphone and begins a pipeline run.
// Rejected unless the pipeline is Idle: at most one run at a time.
func (p *Pipeline) StartRecording() error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrNotIdle
	}
	p.state = StateRecording
	p.transcript = ""
	p.reply = ""
	p.mu.Unlock()

	p.publishState(StateIdle, StateRecording)

	rec, err := p.capture.Start(p.ctx)
	if err != nil {
		p.fail(StateRecording, "Microphone access failed. Please check permissions.", err)
		return nil
	}

	p.mu.Lock()
	p.rec = rec
	p.mu.Unlock()

	p.logger.Info().Msg("Recording started")
	return nil
}

// StopRecording releases the microphone and submits the captured audio
// for transcription. Once stopped, the captured audio is never discarded:
// the remaining stages always run to completion or failure.
func (p *Pipeline) StopRecording() error {
	p.mu.Lock()
	if p.state != StateRecording {
		p.mu.Unlock()
		return ErrNotRecording
	}
	rec := p.rec
	p.rec = nil
	p.mu.Unlock()

	if rec == nil {
		// Device acquisition is still in flight; nothing captured yet
		p.fail(StateRecording, "Recording was not ready to stop.", ErrNotRecording)
		return nil
	}

	captured, err := rec.Stop()
	if err != nil {
		p.fail(StateRecording, "Failed to stop recording.", err)
		return nil
	}

	p.setState(StateTranscribing)
	p.logger.Info().Int("audioBytes", len(captured)).Msg("Recording stopped, transcribing")

	go p.run(captured)
	return nil
}

// Acknowledge clears the Error state and returns the pipeline to Idle
func (p *Pipeline) Acknowledge() error {
	p.mu.Lock()
	if p.state != StateError {
		p.mu.Unlock()
		return ErrNoError
	}
	p.state = StateIdle
	p.errMessage = ""
	p.mu.Unlock()

	p.publishState(StateError, StateIdle)
	p.logger.Info().Msg("Error acknowledged")
	return nil
}

// Close shuts the pipeline down
func (p *Pipeline) Close() {
	p.cancel()
}

// run executes the transcribe -> reply -> synthesize -> play stages.
// Each transition is driven by exactly one completion event; there is no
// cancellation path once this starts.
func (p *Pipeline) run(captured []byte) {
	tr, err := p.backend.Transcribe(p.ctx, captured)
	if err != nil {
		p.fail(StateTranscribing, "Failed to transcribe your voice. Please try again.", err)
		return
	}

	p.mu.Lock()
	p.transcript = tr.Text
	p.mu.Unlock()

	if p.eventBus != nil {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeVoiceTranscript,
			Data: map[string]any{"text": tr.Text},
		})
	}

	p.setState(StateReplying)

	reply, err := p.dispatcher.Send(p.ctx, tr.Text, p.pref)
	if err != nil {
		p.fail(StateReplying, "Failed to get a reply. Please try again.", err)
		return
	}

	p.mu.Lock()
	p.reply = reply
	p.mu.Unlock()

	if p.eventBus != nil {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeVoiceReply,
			Data: map[string]any{"text": reply},
		})
	}

	p.setState(StateSynthesizing)

	speech, err := p.backend.Speak(p.ctx, reply, p.config.Voice)
	if err != nil {
		p.fail(StateSynthesizing, "Failed to synthesize speech. Please try again.", err)
		return
	}

	p.setState(StatePlaying)

	done, err := p.playback.Play(p.ctx, speech)
	if err != nil {
		p.fail(StatePlaying, "Failed to play the reply.", err)
		return
	}

	if err := <-done; err != nil {
		p.fail(StatePlaying, "Failed to play the reply.", err)
		return
	}

	p.setState(StateIdle)
	p.logger.Info().Msg("Voice interaction complete")
}

// setState transitions to the next state and publishes the change
func (p *Pipeline) setState(next State) {
	p.mu.Lock()
	old := p.state
	p.state = next
	p.mu.Unlock()

	if old != next {
		p.publishState(old, next)
	}
}

// fail moves the pipeline to Error with a user-facing message. Owned
// devices have always been released by the time this is called: the
// microphone is released by Recording.Stop (or never acquired), and the
// speaker by the playback done event.
func (p *Pipeline) fail(stage State, userMessage string, cause error) {
	p.logger.Error().Err(cause).Str("stage", string(stage)).Msg("Pipeline stage failed")

	p.mu.Lock()
	old := p.state
	p.state = StateError
	p.errMessage = userMessage
	p.rec = nil
	p.mu.Unlock()

	p.publishState(old, StateError)

	if p.eventBus != nil {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeVoiceError,
			Data: map[string]any{
				"stage":   string(stage),
				"message": userMessage,
				"error":   cause.Error(),
			},
		})
	}
}

// publishState emits a state-change event
func (p *Pipeline) publishState(old, next State) {
	p.logger.Info().Str("old", string(old)).Str("new", string(next)).Msg("Pipeline state changed")

	if p.eventBus != nil {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeVoiceStateChanged,
			Data: map[string]any{
				"old_state": string(old),
				"new_state": string(next),
			},
		})
	}
}
