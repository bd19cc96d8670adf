package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-camkit/pkg/controls"
	"github.com/teslashibe/go-camkit/pkg/device"
)

// Server is the manual-control HTTP surface.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	mapper *controls.Mapper
	caps   device.Characteristics

	previewHub *Hub
	statusHub  *Hub

	// OnCapture performs a still capture and persists it, returning the
	// final path. kind is "jpeg" or "raw". Retryable failures re-enable
	// the client's capture affordance.
	OnCapture func(kind string) (string, error)
}

// NewServer creates the control server.
func NewServer(addr string, mapper *controls.Mapper, caps device.Characteristics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:       addr,
		logger:     logger,
		mapper:     mapper,
		caps:       caps,
		previewHub: NewHub("preview", logger),
		statusHub:  NewHub("status", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "camkit",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/capabilities", s.handleCapabilities)
	api.Get("/controls", s.handleControls)
	api.Post("/controls/focus/toggle", s.handleToggleFocus)
	api.Post("/controls/exposure/toggle", s.handleToggleControls)
	api.Post("/controls/focus", s.handleFocus)
	api.Post("/controls/iso", s.handleISO)
	api.Post("/controls/shutter", s.handleShutter)
	api.Post("/capture", s.handleCapture)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/preview", websocket.New(func(c *websocket.Conn) {
		s.previewHub.serve(c)
	}))
	app.Get("/ws/status", websocket.New(func(c *websocket.Conn) {
		s.statusHub.serve(c)
	}))

	s.app = app
	return s
}

// Start runs the hubs and serves until Stop.
func (s *Server) Start() error {
	go s.previewHub.Run()
	go s.statusHub.Run()
	s.logger.Info("control server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Stop shuts the server and its hubs down.
func (s *Server) Stop() error {
	s.previewHub.Stop()
	s.statusHub.Stop()
	return s.app.Shutdown()
}

// PushPreviewFrame broadcasts a JPEG preview frame to websocket clients.
func (s *Server) PushPreviewFrame(jpeg []byte) {
	s.previewHub.BroadcastBinary(jpeg)
}

// pushStatus broadcasts the current control state.
func (s *Server) pushStatus() {
	st := s.mapper.Snapshot()
	_ = s.statusHub.BroadcastJSON(controlsView(s.mapper, st))
}
