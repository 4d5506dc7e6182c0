// Package chat dispatches user messages to the backend and applies the
// results to the active session.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/companion/internal/backend"
	"github.com/normanking/companion/internal/bus"
	"github.com/normanking/companion/internal/provider"
	"github.com/normanking/companion/internal/session"
)

// Common errors
var (
	// ErrEmptyMessage is returned for input that is empty after trimming.
	// The UI is expected to disable the send affordance instead of calling.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrBusy is returned while a dispatch for this session is outstanding.
	ErrBusy = errors.New("chat: dispatch already in flight")
)

// FallbackReply is appended to the log when a dispatch fails, so the log
// stays a faithful turn-by-turn record even across errors.
const FallbackReply = "Sorry, I encountered an error. Please try again."

// DispatchError signals that a dispatch failed after the user message was
// already appended; the error bubble is in the log, this carries the cause
// for any UI-level notification.
type DispatchError struct {
	Cause error
}

func (e *DispatchError) Error() string {
	return "chat: dispatch failed: " + e.Cause.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Dispatcher sends user utterances to the backend, one at a time per
// session, and applies replies to the session store. Starting a new
// conversation swaps in a fresh store; the old one is discarded, never
// merged.
type Dispatcher struct {
	backend  *backend.Client
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu       sync.Mutex
	session  *session.Store
	inFlight bool
}

// NewDispatcher creates a dispatcher bound to one session store
func NewDispatcher(client *backend.Client, store *session.Store, eventBus *bus.EventBus, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		backend:  client,
		session:  store,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "chat-dispatcher").Logger(),
	}
}

// Busy reports whether a dispatch is currently outstanding
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Session returns the active conversation store
func (d *Dispatcher) Session() *session.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// NewConversation discards the active session and swaps in a fresh,
// empty store with no conversation id. Rejected while a dispatch is
// outstanding so a late reply cannot land in the wrong log.
func (d *Dispatcher) NewConversation() (*session.Store, error) {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	old := d.session
	fresh := session.NewStore(d.eventBus)
	d.session = fresh
	d.mu.Unlock()

	previousID, _ := old.ID()
	d.logger.Info().Str("previousConversation", previousID).Msg("Started new conversation")

	if d.eventBus != nil {
		d.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSessionReset,
			Data: map[string]any{"previous_conversation_id": previousID},
		})
	}

	return fresh, nil
}

// Send dispatches one user message under the given provider preference and
// returns the assistant reply.
//
// The user message is appended to the session log before the network call
// begins. On success the backend-assigned conversation id is adopted
// (first assignment wins) and the reply is appended. On failure a fixed
// error message is appended instead and a *DispatchError is returned; the
// session id is left untouched. Exactly two messages are appended per
// successful or failed call, never interleaved with another call's.
func (d *Dispatcher) Send(ctx context.Context, text string, pref provider.Preference) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return "", ErrBusy
	}
	d.inFlight = true
	store := d.session
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	// The user's own utterance is visible immediately, before the call
	store.AppendUser(text)

	if d.eventBus != nil {
		d.eventBus.Publish(bus.Event{
			Type: bus.EventTypeDispatchStarted,
			Data: map[string]any{"provider": string(pref.Provider)},
		})
	}

	req := &backend.ChatRequest{
		Message:           text,
		UseFallback:       pref.FallbackEnabled,
		PreferredProvider: string(pref.Provider),
	}
	if id, ok := store.ID(); ok {
		req.ConversationID = id
	}

	resp, err := d.backend.Chat(ctx, req)
	if err != nil {
		d.logger.Error().Err(err).Str("provider", string(pref.Provider)).Msg("Dispatch failed")

		store.AppendAssistant(FallbackReply)

		if d.eventBus != nil {
			d.eventBus.Publish(bus.Event{
				Type: bus.EventTypeDispatchFailed,
				Data: map[string]any{"error": err.Error()},
			})
		}
		return "", &DispatchError{Cause: err}
	}

	store.AdoptID(resp.ConversationID)
	store.AppendAssistant(resp.Response)

	d.logger.Info().
		Str("provider", resp.Provider).
		Str("conversationId", resp.ConversationID).
		Int("replyLen", len(resp.Response)).
		Msg("Dispatch complete")

	if d.eventBus != nil {
		d.eventBus.Publish(bus.Event{
			Type: bus.EventTypeDispatchCompleted,
			Data: map[string]any{
				"provider":        resp.Provider,
				"conversation_id": resp.ConversationID,
			},
		})
	}

	return resp.Response, nil
}
