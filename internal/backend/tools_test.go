package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResearchFirstSourceSucceeds(t *testing.T) {
	var sources []string
	var mu sync.Mutex

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		sources = append(sources, req["source"])
		mu.Unlock()

		json.NewEncoder(w).Encode(ResearchResult{
			Result: "findings",
			Source: ResearchSource(req["source"]),
		})
	}))

	result, err := client.Research(context.Background(), "go generics", nil)
	require.NoError(t, err)
	assert.Equal(t, SourcePerplexity, result.Source)
	assert.Equal(t, []string{"perplexity"}, sources)
}

func TestResearchFallsThroughInOrder(t *testing.T) {
	var sources []string
	var mu sync.Mutex

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		sources = append(sources, req["source"])
		mu.Unlock()

		if req["source"] != "web" {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"detail": "source down"})
			return
		}
		json.NewEncoder(w).Encode(ResearchResult{Result: "findings", Source: SourceWeb})
	}))

	result, err := client.Research(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceWeb, result.Source)
	assert.Equal(t, []string{"perplexity", "tavily", "web"}, sources)
}

func TestResearchAllSourcesFail(t *testing.T) {
	var count int
	var mu sync.Mutex

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"detail": "down"})
	}))

	_, err := client.Research(context.Background(), "query", nil)
	require.ErrorIs(t, err, ErrAllSourcesFailed)

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr, "last source error is preserved")
	assert.Equal(t, 3, count)
}

func TestResearchCapsAttempts(t *testing.T) {
	var count int
	var mu sync.Mutex

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	long := []ResearchSource{SourcePerplexity, SourceTavily, SourceWeb, SourcePerplexity, SourceTavily}
	_, err := client.Research(context.Background(), "query", long)
	require.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, 3, count)
}

func TestResearchRejectsEmptyQuery(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent for empty query")
	}))

	_, err := client.Research(context.Background(), "  ", nil)
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestGenerateImage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/image/generate", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a sunset", req["prompt"])
		assert.Equal(t, "512x512", req["size"])

		json.NewEncoder(w).Encode(ImageResponse{ImageBase64: "aW1n", Prompt: "a sunset"})
	}))

	resp, err := client.GenerateImage(context.Background(), "a sunset", "512x512")
	require.NoError(t, err)
	assert.Equal(t, "aW1n", resp.ImageBase64)
}

func TestGenerateCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/code", r.URL.Path)
		json.NewEncoder(w).Encode(CodeResponse{Code: "package main"})
	}))

	resp, err := client.GenerateCode(context.Background(), "write hello world")
	require.NoError(t, err)
	assert.Equal(t, "package main", resp.Code)
}

func TestListConversations(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"conversations": []map[string]any{
				{"_id": "conv-1", "provider": "openai"},
				{"_id": "conv-2", "provider": "groq"},
			},
		})
	}))

	convs, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "conv-1", convs[0].ID)
	assert.Equal(t, "groq", convs[1].Provider)
}

func TestToolEndpointPaths(t *testing.T) {
	var paths []string
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(&Config{BaseURL: server.URL}, zerolog.Nop())
	ctx := context.Background()

	_, err := client.CreateMarketing(ctx, "campaign")
	require.NoError(t, err)
	_, err = client.AnalyzeRealEstate(ctx, "market")
	require.NoError(t, err)
	_, err = client.BusinessStrategy(ctx, "plan")
	require.NoError(t, err)
	_, err = client.PersonalDevelopment(ctx, "goals")
	require.NoError(t, err)
	_, err = client.TaskAutomation(ctx, "workflow")
	require.NoError(t, err)
	_, err = client.AnalyzeDocument(ctx, "aW1n", "summarize")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/marketing",
		"/api/real-estate/analyze",
		"/api/business/strategy",
		"/api/personal/development",
		"/api/task/automation",
		"/api/document/analyze",
	}, paths)
}
