// Package web serves the companion dashboard: a small JSON API to inspect
// and steer the companion, a JPEG preview of the watched screen, and
// websocket streams of state and transcript updates.
package web

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-mimi/pkg/companion"
	"github.com/teslashibe/go-mimi/pkg/hub"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/transcript"
)

// Backend is the companion as seen by the dashboard.
type Backend interface {
	Snapshot() companion.Snapshot
	History(n int) []transcript.Entry
	SetPaused(paused bool)
	SetVoice(enabled bool)
	StopSpeaking()
	Say(text string) (*reaction.Task, error)
	FrameJPEG(quality int) ([]byte, error)
	AnnotatedFrameJPEG(quality int) ([]byte, error)
}

var _ Backend = (*companion.Companion)(nil)

// Config holds dashboard settings.
type Config struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string

	// StaticDir, when set, is served at "/".
	StaticDir string

	// FrameQuality is the JPEG quality of /api/frame.jpg.
	// Default: 70
	FrameQuality int

	// SayTimeout bounds how long POST /api/say waits for the reply.
	// Default: 30s
	SayTimeout time.Duration

	// HistoryReplay is how many transcript entries a new /ws/transcript
	// client receives on connect.
	// Default: 20
	HistoryReplay int

	Logger *slog.Logger
}

// DefaultConfig returns the default dashboard configuration.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		FrameQuality:  70,
		SayTimeout:    30 * time.Second,
		HistoryReplay: 20,
		Logger:        slog.Default(),
	}
}

// Server is the dashboard server.
type Server struct {
	app     *fiber.App
	config  Config
	backend Backend
	logger  *slog.Logger

	statusHub     *hub.Hub
	transcriptHub *hub.Hub
}

// NewServer creates a dashboard over backend. Zero config fields take
// defaults.
func NewServer(backend Backend, cfg Config) *Server {
	d := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.FrameQuality <= 0 || cfg.FrameQuality > 100 {
		cfg.FrameQuality = d.FrameQuality
	}
	if cfg.SayTimeout <= 0 {
		cfg.SayTimeout = d.SayTimeout
	}
	if cfg.HistoryReplay < 0 {
		cfg.HistoryReplay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}

	s := &Server{
		config:        cfg,
		backend:       backend,
		logger:        cfg.Logger.With("component", "web"),
		statusHub:     hub.New("status", cfg.Logger),
		transcriptHub: hub.New("transcript", cfg.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Mimi Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Post("/pause", s.handlePause)
	api.Post("/voice", s.handleVoice)
	api.Post("/stop", s.handleStop)
	api.Post("/say", s.handleSay)
	api.Get("/frame.jpg", s.handleFrame)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start runs the hubs and listens on the configured address until
// Shutdown or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.transcriptHub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("dashboard shutdown", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "url", "http://"+ln.Addr().String())
	return s.app.Listener(ln)
}

// BroadcastStatus pushes a snapshot to /ws/status clients.
func (s *Server) BroadcastStatus(snap companion.Snapshot) {
	if s.statusHub.ClientCount() == 0 {
		return
	}
	if err := s.statusHub.BroadcastJSON(snap); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// BroadcastEntry pushes a transcript entry to /ws/transcript clients.
func (s *Server) BroadcastEntry(e transcript.Entry) {
	if s.transcriptHub.ClientCount() == 0 {
		return
	}
	if err := s.transcriptHub.BroadcastJSON(e); err != nil {
		s.logger.Warn("encode transcript entry", "error", err)
	}
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
