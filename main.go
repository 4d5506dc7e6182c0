package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/normanking/companion/internal/audio"
	"github.com/normanking/companion/internal/backend"
	"github.com/normanking/companion/internal/bus"
	"github.com/normanking/companion/internal/chat"
	"github.com/normanking/companion/internal/config"
	"github.com/normanking/companion/internal/discovery"
	"github.com/normanking/companion/internal/feed"
	"github.com/normanking/companion/internal/logging"
	"github.com/normanking/companion/internal/profile"
	"github.com/normanking/companion/internal/provider"
	"github.com/normanking/companion/internal/session"
	"github.com/normanking/companion/internal/voice"
)

func main() {
	loadEnvFiles()

	cfg, cfgErr := config.Load()

	logger, err := logging.New(&logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	log := logger.Component("main")
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("Config load failed, using defaults")
	}

	eventBus := bus.NewEventBus()

	client := backend.NewClient(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, logger.Zerolog())

	store := session.NewStore(eventBus)
	dispatcher := chat.NewDispatcher(client, store, eventBus, logger.Zerolog())

	pref := provider.DefaultPreference()
	if provider.Provider(cfg.Chat.Provider).Valid() {
		pref = provider.Preference{
			Provider:        provider.Provider(cfg.Chat.Provider),
			FallbackEnabled: cfg.Chat.UseFallback,
		}
	}
	selector := provider.NewSelector(pref)

	audioMgr := audio.NewManager(&audio.Config{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		BitDepth:        cfg.Audio.BitDepth,
		ChunkDurationMs: cfg.Audio.ChunkDurationMs,
	}, logger.Zerolog())

	pipeline := voice.NewPipeline(&voice.Config{Voice: cfg.Voice.Voice},
		audioMgr, audioMgr, dispatcher, client, eventBus, logger.Zerolog())
	defer pipeline.Close()

	identity := profile.New(client, eventBus, logger.Zerolog())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disco := discovery.NewService(&discovery.Config{
		Ports:           cfg.Discovery.Ports,
		CustomURLs:      cfg.Discovery.CustomURLs,
		Timeout:         cfg.Discovery.Timeout,
		RefreshInterval: cfg.Discovery.RefreshInterval,
	}, eventBus, logger.Zerolog())
	disco.OnSelected(func(url string) {
		client.SetBaseURL(url)
	})
	disco.Start(ctx)
	defer disco.Stop()

	if cfg.Feed.Enabled {
		feedServer := feed.NewServer(&feed.Config{Addr: cfg.Feed.Addr}, eventBus, logger.Zerolog())
		if err := feedServer.Start(); err != nil {
			log.Error().Err(err).Msg("Event feed failed to start")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer shutdownCancel()
				feedServer.Stop(shutdownCtx)
			}()
		}
	}

	config.Watch(func(updated *config.Config) {
		log.Info().Msg("Configuration reloaded")
		client.SetBaseURL(updated.Backend.BaseURL)
	})

	bootCtx, bootCancel := context.WithTimeout(ctx, 10*time.Second)
	identity.Bootstrap(bootCtx)
	bootCancel()

	fmt.Printf("%s ready. Type a message, or /help for commands.\n", identity.DisplayName())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down")
		cancel()
		os.Exit(0)
	}()

	repl(ctx, &app{
		client:     client,
		dispatcher: dispatcher,
		selector:   selector,
		pipeline:   pipeline,
		identity:   identity,
		disco:      disco,
	})
}

// app bundles the wired components for the REPL
type app struct {
	client     *backend.Client
	dispatcher *chat.Dispatcher
	selector   *provider.Selector
	pipeline   *voice.Pipeline
	identity   *profile.Profile
	disco      *discovery.Service
}

// repl reads commands from stdin until EOF or cancellation
func repl(ctx context.Context, a *app) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		if strings.HasPrefix(line, "/") {
			handleCommand(ctx, a, line)
			continue
		}

		reply, err := a.dispatcher.Send(ctx, line, a.selector.Current())
		if err != nil {
			var dispatchErr *chat.DispatchError
			if errors.As(err, &dispatchErr) {
				// The error bubble is already in the log
				fmt.Println(chat.FallbackReply)
			} else {
				fmt.Printf("error: %v\n", err)
			}
			continue
		}
		fmt.Println(reply)
	}
}

// handleCommand dispatches one slash command
func handleCommand(ctx context.Context, a *app, line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "/help":
		printHelp()

	case "/provider":
		if rest == "" {
			pref := a.selector.Current()
			fmt.Printf("provider: %s (fallback: %v)\n", pref.Provider, pref.FallbackEnabled)
			fmt.Printf("available: %v\n", provider.All())
			return
		}
		if err := a.selector.Select(provider.Provider(rest)); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("provider set to %s\n", rest)

	case "/fallback":
		enabled := a.selector.ToggleFallback()
		fmt.Printf("fallback: %v\n", enabled)

	case "/record":
		if err := a.pipeline.StartRecording(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("recording... use /stop to finish")

	case "/stop":
		if err := a.pipeline.StopRecording(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("processing voice input...")

	case "/ack":
		if err := a.pipeline.Acknowledge(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("ready")

	case "/voice":
		fmt.Printf("pipeline: %s\n", a.pipeline.State())
		if a.pipeline.State() == voice.StateError {
			fmt.Printf("error: %s (use /ack to clear)\n", a.pipeline.ErrorMessage())
		}

	case "/name":
		if rest == "" {
			name, ok := a.identity.Name()
			if !ok {
				fmt.Println("no name chosen yet; use /name <name> or /introduce")
				return
			}
			fmt.Println(name)
			return
		}
		if err := a.identity.SetName(ctx, rest); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("name set to %s\n", rest)

	case "/introduce":
		resp, err := a.identity.Introduce(ctx, rest)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println(resp.Response)

	case "/research":
		if rest == "" {
			fmt.Println("usage: /research <query>")
			return
		}
		result, err := a.client.Research(ctx, rest, backend.DefaultResearchSources())
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("[%s] %s\n", result.Source, result.Result)

	case "/image":
		if rest == "" {
			fmt.Println("usage: /image <prompt>")
			return
		}
		resp, err := a.client.GenerateImage(ctx, rest, "")
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("image generated (%d base64 bytes)\n", len(resp.ImageBase64))

	case "/code":
		if rest == "" {
			fmt.Println("usage: /code <request>")
			return
		}
		resp, err := a.client.GenerateCode(ctx, rest)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println(resp.Code)

	case "/new":
		if _, err := a.dispatcher.NewConversation(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("started a new conversation")

	case "/history":
		store := a.dispatcher.Session()
		for _, msg := range store.Messages() {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
		if id, ok := store.ID(); ok {
			fmt.Printf("conversation: %s\n", id)
		}

	case "/endpoints":
		for _, ep := range a.disco.Endpoints() {
			fmt.Printf("%-30s %s (%.0fms)\n", ep.URL, ep.Status, float64(ep.Latency.Milliseconds()))
		}

	default:
		fmt.Printf("unknown command %s; try /help\n", cmd)
	}
}

func printHelp() {
	fmt.Println(`commands:
  <text>              send a chat message
  /provider [name]    show or set the preferred provider
  /fallback           toggle provider fallback
  /record /stop /ack  control the voice pipeline
  /voice              show pipeline state
  /name [name]        show or set the AI's name
  /introduce [msg]    run the first-contact naming conversation
  /research <query>   run a research query
  /image <prompt>     generate an image
  /code <request>     generate code
  /new                start a new conversation
  /history            print the session log
  /endpoints          list discovered backends
  /quit`)
}

// loadEnvFiles reads KEY=VALUE pairs from .env files into the process
// environment. Existing variables are never overwritten.
func loadEnvFiles() {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".companion", ".env"))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			if _, exists := os.LookupEnv(key); !exists {
				os.Setenv(key, value)
			}
		}
	}
}
