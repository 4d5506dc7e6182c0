package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the backend client
type Config struct {
	BaseURL string        // e.g., "http://localhost:8001"
	Timeout time.Duration // HTTP request timeout
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8001",
		Timeout: 120 * time.Second,
	}
}

// Client talks to the companion backend API
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new backend client
func NewClient(cfg *Config, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "backend-client").Logger(),
	}
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetBaseURL updates the base URL, e.g. after discovery selects an endpoint
func (c *Client) SetBaseURL(baseURL string) {
	c.config.BaseURL = strings.TrimSuffix(baseURL, "/")
	c.logger.Info().Str("baseURL", c.config.BaseURL).Msg("Backend URL updated")
}

// Health checks the backend health endpoint
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends a chat message and returns the assistant reply together with
// the conversation id assigned (or echoed) by the backend.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyText
	}

	c.logger.Debug().
		Str("provider", req.PreferredProvider).
		Bool("useFallback", req.UseFallback).
		Bool("hasConversation", req.ConversationID != "").
		Msg("Sending chat request")

	var out ChatResponse
	if err := c.postJSON(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("conversationId", out.ConversationID).
		Str("provider", out.Provider).
		Int("replyLen", len(out.Response)).
		Msg("Chat response received")

	return &out, nil
}

// Transcribe uploads recorded audio and returns the transcription
func (c *Client) Transcribe(ctx context.Context, audio []byte) (*TranscribeResponse, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	startTime := time.Now()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/voice/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var out TranscribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Info().
		Int("audioBytes", len(audio)).
		Int("textLen", len(out.Text)).
		Dur("processingTime", time.Since(startTime)).
		Msg("Transcription complete")

	return &out, nil
}

// Speak synthesizes speech for the given text and returns the audio bytes.
// The backend responds with base64-encoded audio; it is decoded here so
// callers only ever see raw bytes.
func (c *Client) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	startTime := time.Now()

	form := url.Values{}
	form.Set("text", text)
	form.Set("voice", voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/voice/speak",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var out speakResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	c.logger.Info().
		Str("voice", voice).
		Int("textLen", len(text)).
		Int("audioBytes", len(audio)).
		Dur("processingTime", time.Since(startTime)).
		Msg("Speech synthesis complete")

	return audio, nil
}

// GetName fetches the AI's chosen name, if one has been set
func (c *Client) GetName(ctx context.Context) (*NameResponse, error) {
	var out NameResponse
	if err := c.getJSON(ctx, "/api/name", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IntroduceAndChooseName runs the first-contact conversation in which the
// AI introduces itself and proposes names.
func (c *Client) IntroduceAndChooseName(ctx context.Context, userMessage string) (*IntroduceResponse, error) {
	in := map[string]string{"user_message": userMessage}
	var out IntroduceResponse
	if err := c.postJSON(ctx, "/api/name/initial", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetName persists the AI's chosen name
func (c *Client) SetName(ctx context.Context, name string) (*SetNameResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyText
	}

	form := url.Values{}
	form.Set("name", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/name/set",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var out SetNameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// postJSON sends a JSON body and decodes a JSON response
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getJSON fetches a JSON response
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError converts a non-success response into an *APIError
func (c *Client) decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	detail := strings.TrimSpace(string(body))
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		detail = envelope.Detail
	}

	c.logger.Error().
		Int("status", resp.StatusCode).
		Str("detail", truncateForLog(detail, 500)).
		Msg("Backend request failed")

	return &APIError{StatusCode: resp.StatusCode, Detail: detail}
}

// truncateForLog truncates a string for logging purposes
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
