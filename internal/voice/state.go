package voice

// State is the voice pipeline's current stage. Exactly one pipeline
// instance is live per client, and exactly one state is active at a time;
// each transition is triggered by one completion or failure event from the
// previous stage.
type State string

const (
	// StateIdle is the resting state; only here may a recording start.
	StateIdle State = "idle"
	// StateRecording means the microphone is owned and capturing.
	StateRecording State = "recording"
	// StateTranscribing means captured audio was submitted for transcription.
	StateTranscribing State = "transcribing"
	// StateReplying means the transcript was dispatched for a chat reply.
	StateReplying State = "replying"
	// StateSynthesizing means the reply is being converted to speech.
	StateSynthesizing State = "synthesizing"
	// StatePlaying means the speaker is owned and playing the reply.
	StatePlaying State = "playing"
	// StateError is entered on any stage failure and holds until the user
	// acknowledges it.
	StateError State = "error"
)
