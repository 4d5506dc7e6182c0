package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAllSourcesFailed is returned when every research source in the chain failed.
var ErrAllSourcesFailed = errors.New("backend: all research sources failed")

// maxResearchAttempts caps how many sources a single research call may try.
const maxResearchAttempts = 3

// GenerateImage requests an image for the given prompt.
// size is e.g. "1024x1024"; empty uses the backend default.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (*ImageResponse, error) {
	in := map[string]string{"prompt": prompt}
	if size != "" {
		in["size"] = size
	}
	var out ImageResponse
	if err := c.postJSON(ctx, "/api/image/generate", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateCode requests code generation or analysis
func (c *Client) GenerateCode(ctx context.Context, message string) (*CodeResponse, error) {
	var out CodeResponse
	if err := c.postJSON(ctx, "/api/code", &ChatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMarketing requests marketing material
func (c *Client) CreateMarketing(ctx context.Context, message string) (*MarketingResponse, error) {
	var out MarketingResponse
	if err := c.postJSON(ctx, "/api/marketing", &ChatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeDocument sends a base64-encoded document image for analysis
func (c *Client) AnalyzeDocument(ctx context.Context, imageBase64, prompt string) (*AnalysisResponse, error) {
	in := map[string]string{
		"image_base64": imageBase64,
		"prompt":       prompt,
	}
	var out AnalysisResponse
	if err := c.postJSON(ctx, "/api/document/analyze", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeRealEstate requests a real estate market analysis
func (c *Client) AnalyzeRealEstate(ctx context.Context, message string) (*AnalysisResponse, error) {
	var out AnalysisResponse
	if err := c.postJSON(ctx, "/api/real-estate/analyze", &ChatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BusinessStrategy requests a business strategy plan
func (c *Client) BusinessStrategy(ctx context.Context, message string) (*StrategyResponse, error) {
	var out StrategyResponse
	if err := c.postJSON(ctx, "/api/business/strategy", &ChatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PersonalDevelopment requests personal development guidance
func (c *Client) PersonalDevelopment(ctx context.Context, message string) (*GuidanceResponse, error) {
	var out GuidanceResponse
	if err := c.postJSON(ctx, "/api/personal/development", &ChatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskAutomation requests a workflow automation plan
func (c *Client) TaskAutomation(ctx context.Context, message string) (*AutomationResponse, error) {
	var out AutomationResponse
	if err := c.postJSON(ctx, "/api/task/automation", &ChatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DefaultResearchSources is the ordered fallback chain for research calls
func DefaultResearchSources() []ResearchSource {
	return []ResearchSource{SourcePerplexity, SourceTavily, SourceWeb}
}

// Research runs a research query against an ordered list of sources,
// falling through to the next source on failure. At most
// maxResearchAttempts sources are tried per call.
func (c *Client) Research(ctx context.Context, query string, sources []ResearchSource) (*ResearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyText
	}
	if len(sources) == 0 {
		sources = DefaultResearchSources()
	}
	if len(sources) > maxResearchAttempts {
		sources = sources[:maxResearchAttempts]
	}

	var lastErr error
	for _, source := range sources {
		in := map[string]string{
			"query":  query,
			"source": string(source),
		}

		var out ResearchResult
		if err := c.postJSON(ctx, "/api/research", in, &out); err != nil {
			c.logger.Warn().Err(err).Str("source", string(source)).Msg("Research source failed, trying next")
			lastErr = err
			continue
		}
		return &out, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, lastErr)
}

// ListConversations fetches recent conversation summaries
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out conversationsEnvelope
	if err := c.getJSON(ctx, "/api/conversations", &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}
