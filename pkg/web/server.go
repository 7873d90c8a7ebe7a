// Package web exposes the speed limit state over REST and WebSocket.
package web

import (
	"context"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/signwatch/go-signwatch/internal/config"
	"github.com/signwatch/go-signwatch/internal/log"
	"github.com/signwatch/go-signwatch/internal/metrics"
	"github.com/signwatch/go-signwatch/pkg/detect"
	"github.com/signwatch/go-signwatch/pkg/hub"
	"github.com/signwatch/go-signwatch/pkg/ocr"
	"github.com/signwatch/go-signwatch/pkg/speedlimit"
)

// Options wires the server to the rest of the service.
type Options struct {
	Server  config.ServerConfig
	Uploads config.UploadsConfig

	// FrameThreshold is the confirmation threshold for per-connection frame
	// stream sessions, typically lower than the main pipeline's because
	// browser clients send at a reduced rate.
	FrameThreshold int

	Store    *speedlimit.Store
	Machine  *speedlimit.Machine
	Detector detect.Detector
	Reader   ocr.Reader
	Metrics  *metrics.Metrics
}

// Server is the HTTP and WebSocket front of the service.
type Server struct {
	app  *fiber.App
	opts Options

	stateHub *hub.Hub

	// pipelineRunning reflects whether the frame loop is active, reported
	// by the health endpoint.
	pipelineRunning atomic.Bool
}

// NewServer creates the API server and registers all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		stateHub: hub.New("speed"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "signwatch",
		DisableStartupMessage: true,
		BodyLimit:             256 * 1024 * 1024, // video uploads
	})

	app.Use(cors.New())

	api := app.Group("/api/v1")
	api.Get("/current", s.handleCurrent)
	api.Get("/effective", s.handleEffective)
	api.Get("/health", s.handleHealth)
	api.Post("/reset", s.handleReset)

	api.Post("/videos", s.handleUploadVideo)
	api.Get("/videos", s.handleListVideos)
	api.Delete("/videos/:id", s.handleDeleteVideo)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/speed", websocket.New(s.handleSpeedWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// Run starts the hub, the change broadcaster and the listener, and blocks
// until the listener fails or Shutdown is called. ctx stops the background
// goroutines.
func (s *Server) Run(ctx context.Context) error {
	go s.stateHub.Run(ctx)
	go s.broadcastLoop(ctx)

	addr := s.opts.Server.Addr()
	log.Info("api server listening", "addr", addr)
	return s.app.Listen(addr)
}

// SetPipelineRunning records whether the frame loop is active.
func (s *Server) SetPipelineRunning(running bool) {
	s.pipelineRunning.Store(running)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
