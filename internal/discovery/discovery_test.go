package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(urls ...string) *Service {
	return NewService(&Config{
		Ports:           nil,
		CustomURLs:      urls,
		Timeout:         500 * time.Millisecond,
		RefreshInterval: time.Hour,
	}, nil, zerolog.Nop())
}

func TestScanFindsHealthyEndpoint(t *testing.T) {
	server := healthyServer(t)
	s := newTestService(server.URL)

	results := s.Scan(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusOnline, results[0].Status)
	assert.Equal(t, server.URL, results[0].URL)
	assert.False(t, results[0].LastSeen.IsZero())

	selected, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, server.URL, selected)
}

func TestScanMarksUnreachableOffline(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	s := newTestService(dead.URL)

	results := s.Scan(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusOffline, results[0].Status)

	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestScanPrefersOnlineOverOffline(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	alive := healthyServer(t)

	s := newTestService(dead.URL, alive.URL)

	results := s.Scan(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusOnline, results[0].Status)
	assert.Equal(t, alive.URL, results[0].URL)

	selected, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, alive.URL, selected)
}

func TestScanRejectsUnhealthyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	s := newTestService(server.URL)
	results := s.Scan(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusOffline, results[0].Status)
}

func TestOnSelectedFiresOnChange(t *testing.T) {
	server := healthyServer(t)
	s := newTestService(server.URL)

	var mu sync.Mutex
	var calls []string
	s.OnSelected(func(url string) {
		mu.Lock()
		calls = append(calls, url)
		mu.Unlock()
	})

	s.Scan(context.Background())
	s.Scan(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{server.URL}, calls, "callback fires only when the selection changes")
}

func TestEndpointsSnapshot(t *testing.T) {
	server := healthyServer(t)
	s := newTestService(server.URL)

	assert.Empty(t, s.Endpoints())

	s.Scan(context.Background())

	eps := s.Endpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, server.URL, eps[0].URL)
	assert.Equal(t, StatusOnline, eps[0].Status)
}

func TestStartStop(t *testing.T) {
	server := healthyServer(t)

	s := NewService(&Config{
		CustomURLs:      []string{server.URL},
		Timeout:         500 * time.Millisecond,
		RefreshInterval: 10 * time.Millisecond,
	}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)

	require.Eventually(t, func() bool {
		_, ok := s.Selected()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop() // idempotent
}
