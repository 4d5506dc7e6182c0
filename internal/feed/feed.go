// Package feed pushes bus events to UI clients over WebSocket so the
// rendering layer can observe session and pipeline changes as they happen.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/companion/internal/bus"
)

// Config configures the event feed server
type Config struct {
	Addr string // listen address, e.g. "127.0.0.1:7455"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Addr: "127.0.0.1:7455"}
}

// frame is one event as sent over the wire
type frame struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// feedEventTypes lists everything pushed to UI clients
var feedEventTypes = []bus.EventType{
	bus.EventTypeMessageAppended,
	bus.EventTypeSessionAssigned,
	bus.EventTypeSessionReset,
	bus.EventTypeDispatchStarted,
	bus.EventTypeDispatchCompleted,
	bus.EventTypeDispatchFailed,
	bus.EventTypeVoiceStateChanged,
	bus.EventTypeVoiceTranscript,
	bus.EventTypeVoiceReply,
	bus.EventTypeVoiceError,
	bus.EventTypeBackendOnline,
	bus.EventTypeBackendOffline,
	bus.EventTypeNameSet,
}

// Server relays bus events to connected WebSocket clients. A client that
// cannot keep up is dropped rather than allowed to stall the others.
type Server struct {
	config   *Config
	eventBus *bus.EventBus
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	httpServer *http.Server
}

// client is one connected UI observer
type client struct {
	conn *websocket.Conn
	send chan frame
}

// NewServer creates the event feed server and subscribes it to the bus
func NewServer(config *Config, eventBus *bus.EventBus, logger zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:   config,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "feed").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local-only feed; the listener binds loopback
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	eventBus.SubscribeMultiple(feedEventTypes, s.broadcast)
	return s
}

// Start begins serving the feed on the configured address
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: mux,
	}

	s.logger.Info().Str("addr", s.config.Addr).Msg("Event feed listening")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Feed server stopped")
		}
	}()
	return nil
}

// Stop shuts the feed down and disconnects all clients
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// ClientCount returns the number of connected observers
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handleWS upgrades a connection and starts its write pump
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan frame, 64),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Info().Int("clients", count).Msg("Feed client connected")

	go s.writePump(c)
	go s.readPump(c)
}

// broadcast fans one bus event out to every client
func (s *Server) broadcast(event bus.Event) {
	f := frame{
		Type:      string(event.Type),
		Data:      event.Data,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.send <- f:
		default:
			// Slow client; drop it
			close(c.send)
			delete(s.clients, c)
			s.logger.Warn().Msg("Dropped slow feed client")
		}
	}
	s.mu.Unlock()
}

// writePump serializes frames to one client
func (s *Server) writePump(c *client) {
	defer c.conn.Close()

	for f := range c.send {
		payload, err := json.Marshal(f)
		if err != nil {
			continue
		}

		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.remove(c)
			return
		}
	}
}

// readPump discards inbound messages and detects disconnects
func (s *Server) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

// remove unregisters a client if still present
func (s *Server) remove(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		close(c.send)
		delete(s.clients, c)
		s.logger.Info().Int("clients", len(s.clients)).Msg("Feed client disconnected")
	}
	s.mu.Unlock()
}
