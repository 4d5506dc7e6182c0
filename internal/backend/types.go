// Package backend provides the HTTP client for the companion backend API.
package backend

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrEmptyAudio = errors.New("backend: empty audio payload")
	ErrEmptyText  = errors.New("backend: empty text")
)

// APIError is a non-success response from the backend, decoded once at
// the boundary.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: API error %d: %s", e.StatusCode, e.Detail)
}

// errorBody matches FastAPI's error envelope
type errorBody struct {
	Detail string `json:"detail"`
}

// ChatRequest is the body for POST /api/chat
type ChatRequest struct {
	Message           string `json:"message"`
	ConversationID    string `json:"conversation_id,omitempty"`
	UseFallback       bool   `json:"use_fallback"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
}

// ChatResponse is the reply from POST /api/chat
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Provider       string `json:"provider"`
	Timestamp      string `json:"timestamp"`
}

// TranscribeResponse is the reply from POST /api/voice/transcribe
type TranscribeResponse struct {
	Text string `json:"text"`
}

// speakResponse is the reply from POST /api/voice/speak
type speakResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// NameResponse is the reply from GET /api/name
type NameResponse struct {
	Name    string `json:"name"`
	HasName bool   `json:"has_name"`
}

// IntroduceResponse is the reply from POST /api/name/initial
type IntroduceResponse struct {
	Response string `json:"response"`
	Name     string `json:"name"`
	HasName  bool   `json:"has_name"`
}

// SetNameResponse is the reply from POST /api/name/set
type SetNameResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// HealthResponse is the reply from GET /api/health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ImageResponse is the reply from POST /api/image/generate
type ImageResponse struct {
	ImageBase64 string `json:"image_base64"`
	Prompt      string `json:"prompt"`
}

// CodeResponse is the reply from POST /api/code
type CodeResponse struct {
	Code string `json:"code"`
}

// MarketingResponse is the reply from POST /api/marketing
type MarketingResponse struct {
	Content string `json:"content"`
}

// AnalysisResponse is the reply from POST /api/document/analyze and
// POST /api/real-estate/analyze
type AnalysisResponse struct {
	Analysis string `json:"analysis"`
}

// StrategyResponse is the reply from POST /api/business/strategy
type StrategyResponse struct {
	Strategy string `json:"strategy"`
}

// GuidanceResponse is the reply from POST /api/personal/development
type GuidanceResponse struct {
	Guidance string `json:"guidance"`
}

// AutomationResponse is the reply from POST /api/task/automation
type AutomationResponse struct {
	AutomationPlan string `json:"automation_plan"`
}

// ResearchSource identifies one research backend
type ResearchSource string

// Research sources in preferred order
const (
	SourcePerplexity ResearchSource = "perplexity"
	SourceTavily     ResearchSource = "tavily"
	SourceWeb        ResearchSource = "web"
)

// ResearchResult is the reply from POST /api/research
type ResearchResult struct {
	Result  string         `json:"result"`
	Source  ResearchSource `json:"source"`
	Sources []any          `json:"sources,omitempty"`
}

// ConversationSummary is one entry from GET /api/conversations
type ConversationSummary struct {
	ID        string `json:"_id"`
	Provider  string `json:"provider"`
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// conversationsEnvelope wraps GET /api/conversations
type conversationsEnvelope struct {
	Conversations []ConversationSummary `json:"conversations"`
}
