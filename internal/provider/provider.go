// Package provider tracks the user's chosen upstream LLM provider.
package provider

import (
	"errors"
	"sync"
)

// ErrUnknownProvider is returned when selecting a provider outside the known set.
var ErrUnknownProvider = errors.New("provider: unknown provider")

// Provider identifies an upstream language-model backend
type Provider string

// Supported providers, matching the backend's preferred_provider values
const (
	OpenAI      Provider = "openai"
	Anthropic   Provider = "anthropic"
	EmergentLLM Provider = "emergent_llm"
	IBMWatsonX  Provider = "ibm_watsonx"
	AIMLAPI     Provider = "aimlapi"
	Groq        Provider = "groq"
	Mistral     Provider = "mistral"
)

// All returns every supported provider
func All() []Provider {
	return []Provider{OpenAI, Anthropic, EmergentLLM, IBMWatsonX, AIMLAPI, Groq, Mistral}
}

// Valid reports whether p is a member of the supported set
func (p Provider) Valid() bool {
	switch p {
	case OpenAI, Anthropic, EmergentLLM, IBMWatsonX, AIMLAPI, Groq, Mistral:
		return true
	}
	return false
}

// Preference is the provider choice sent with each chat dispatch
type Preference struct {
	Provider        Provider
	FallbackEnabled bool
}

// DefaultPreference returns the preference used before the user picks anything
func DefaultPreference() Preference {
	return Preference{Provider: OpenAI, FallbackEnabled: false}
}

// Selector holds the active provider preference. Pure state, no I/O.
type Selector struct {
	mu   sync.RWMutex
	pref Preference
}

// NewSelector creates a selector with the given initial preference.
// An invalid initial provider falls back to the default.
func NewSelector(initial Preference) *Selector {
	if !initial.Provider.Valid() {
		initial.Provider = OpenAI
	}
	return &Selector{pref: initial}
}

// Select sets the active provider, rejecting unknown values
func (s *Selector) Select(p Provider) error {
	if !p.Valid() {
		return ErrUnknownProvider
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pref.Provider = p
	return nil
}

// Current returns the active preference
func (s *Selector) Current() Preference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pref
}

// ToggleFallback flips the fallback flag and returns the new value
func (s *Selector) ToggleFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pref.FallbackEnabled = !s.pref.FallbackEnabled
	return s.pref.FallbackEnabled
}

// SetFallback sets the fallback flag directly
func (s *Selector) SetFallback(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pref.FallbackEnabled = enabled
}
