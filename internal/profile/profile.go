// Package profile holds the companion's identity, most notably the name
// the AI chose for itself during first contact.
package profile

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/companion/internal/backend"
	"github.com/normanking/companion/internal/bus"
)

// ErrEmptyName is returned when a blank name is offered
var ErrEmptyName = errors.New("profile: empty name")

// Profile caches the AI's chosen name locally and keeps it in sync with
// the backend. It is injected into whatever needs the name; there is no
// package-level state.
type Profile struct {
	backend  *backend.Client
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu      sync.RWMutex
	name    string
	hasName bool
}

// New creates a profile bound to the backend client
func New(client *backend.Client, eventBus *bus.EventBus, logger zerolog.Logger) *Profile {
	return &Profile{
		backend:  client,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "profile").Logger(),
	}
}

// Bootstrap loads the chosen name from the backend. A failure leaves the
// profile unnamed rather than blocking startup.
func (p *Profile) Bootstrap(ctx context.Context) error {
	resp, err := p.backend.GetName(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Could not load name, continuing unnamed")
		return err
	}

	p.mu.Lock()
	p.name = resp.Name
	p.hasName = resp.HasName
	p.mu.Unlock()

	if resp.HasName {
		p.logger.Info().Str("name", resp.Name).Msg("Profile loaded")
	} else {
		p.logger.Info().Msg("No name chosen yet")
	}
	return nil
}

// Name returns the chosen name and whether one exists
func (p *Profile) Name() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name, p.hasName
}

// DisplayName returns the chosen name, or a fallback if none is set
func (p *Profile) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.hasName {
		return p.name
	}
	return "AI Companion"
}

// Introduce runs one turn of the first-contact naming conversation. If
// the AI settles on a name during the turn, it is adopted locally.
func (p *Profile) Introduce(ctx context.Context, userMessage string) (*backend.IntroduceResponse, error) {
	resp, err := p.backend.IntroduceAndChooseName(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	if resp.HasName && resp.Name != "" {
		p.adopt(resp.Name)
	}
	return resp, nil
}

// SetName persists a name chosen by the user on the backend, then adopts
// it locally.
func (p *Profile) SetName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	resp, err := p.backend.SetName(ctx, name)
	if err != nil {
		return err
	}

	p.adopt(resp.Name)
	return nil
}

// adopt records the name locally and announces it
func (p *Profile) adopt(name string) {
	p.mu.Lock()
	p.name = name
	p.hasName = true
	p.mu.Unlock()

	p.logger.Info().Str("name", name).Msg("Name adopted")

	if p.eventBus != nil {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeNameSet,
			Data: map[string]any{"name": name},
		})
	}
}
