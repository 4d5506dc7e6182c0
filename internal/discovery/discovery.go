// Package discovery probes candidate backend endpoints and keeps track of
// which ones are reachable.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/companion/internal/bus"
)

// Status of a probed endpoint
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Endpoint is one candidate backend
type Endpoint struct {
	URL      string        `json:"url"`
	Status   Status        `json:"status"`
	Latency  time.Duration `json:"latency"`
	LastSeen time.Time     `json:"last_seen"`
}

// Config configures the discovery service
type Config struct {
	Ports           []int         // localhost ports to probe
	CustomURLs      []string      // extra base URLs to probe
	Timeout         time.Duration // per-probe timeout
	RefreshInterval time.Duration // background refresh cadence
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ports:           []int{8001, 8000, 5000},
		Timeout:         2 * time.Second,
		RefreshInterval: 30 * time.Second,
	}
}

// Service scans candidate endpoints for a healthy backend
type Service struct {
	config     *Config
	httpClient *http.Client
	eventBus   *bus.EventBus
	logger     zerolog.Logger

	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	selected  string

	onSelected func(url string)

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates a new discovery service
func NewService(config *Config, eventBus *bus.EventBus, logger zerolog.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	return &Service{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		eventBus:   eventBus,
		logger:     logger.With().Str("component", "discovery").Logger(),
		endpoints:  make(map[string]*Endpoint),
		stopChan:   make(chan struct{}),
	}
}

// OnSelected registers a callback fired when the selected endpoint changes
func (s *Service) OnSelected(fn func(url string)) {
	s.mu.Lock()
	s.onSelected = fn
	s.mu.Unlock()
}

// candidates returns all base URLs to probe
func (s *Service) candidates() []string {
	urls := make([]string, 0, len(s.config.Ports)+len(s.config.CustomURLs))
	for _, port := range s.config.Ports {
		urls = append(urls, fmt.Sprintf("http://localhost:%d", port))
	}
	urls = append(urls, s.config.CustomURLs...)
	return urls
}

// Scan probes all candidates once and returns the results sorted by
// status then latency.
func (s *Service) Scan(ctx context.Context) []Endpoint {
	urls := s.candidates()

	var wg sync.WaitGroup
	results := make([]Endpoint, len(urls))

	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = s.probe(ctx, url)
		}(i, url)
	}
	wg.Wait()

	s.mu.Lock()
	for i := range results {
		ep := results[i]
		s.endpoints[ep.URL] = &ep
	}
	s.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Status != results[j].Status {
			return results[i].Status == StatusOnline
		}
		return results[i].Latency < results[j].Latency
	})

	s.updateSelection(results)
	return results
}

// probe checks a single endpoint's health route
func (s *Service) probe(ctx context.Context, baseURL string) Endpoint {
	ep := Endpoint{URL: baseURL, Status: StatusOffline}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return ep
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debug().Str("url", baseURL).Err(err).Msg("Probe failed")
		return ep
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ep
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return ep
	}

	ep.Status = StatusOnline
	ep.Latency = time.Since(start)
	ep.LastSeen = time.Now()

	s.logger.Debug().
		Str("url", baseURL).
		Dur("latency", ep.Latency).
		Msg("Endpoint online")

	return ep
}

// updateSelection picks the best online endpoint and fires the callback
// and bus events on change.
func (s *Service) updateSelection(sorted []Endpoint) {
	var best string
	if len(sorted) > 0 && sorted[0].Status == StatusOnline {
		best = sorted[0].URL
	}

	s.mu.Lock()
	previous := s.selected
	s.selected = best
	callback := s.onSelected
	s.mu.Unlock()

	if best == previous {
		return
	}

	if best != "" {
		s.logger.Info().Str("url", best).Msg("Backend selected")
		if callback != nil {
			callback(best)
		}
		if s.eventBus != nil {
			s.eventBus.Publish(bus.Event{
				Type: bus.EventTypeBackendOnline,
				Data: map[string]any{"url": best},
			})
		}
	} else {
		s.logger.Warn().Msg("No backend reachable")
		if s.eventBus != nil {
			s.eventBus.Publish(bus.Event{
				Type: bus.EventTypeBackendOffline,
				Data: map[string]any{"previous": previous},
			})
		}
	}
}

// Selected returns the currently selected endpoint URL, if any
func (s *Service) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.selected != ""
}

// Endpoints returns the latest probe results for all known endpoints
func (s *Service) Endpoints() []Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		out = append(out, *ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Start runs periodic background scans until Stop is called
func (s *Service) Start(ctx context.Context) {
	go func() {
		s.Scan(ctx)

		ticker := time.NewTicker(s.config.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Scan(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts background scanning
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
