package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/bft-labs/go2relay/internal/app"
	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/pkg/log"
)

const (
	// streamIdle is how long the video feed waits before polling for a new frame.
	streamIdle = 10 * time.Millisecond

	// streamHeartbeat is how long a feed may stay silent before the last
	// part is repeated.
	streamHeartbeat = 2 * time.Second
)

// Commander executes commands on behalf of HTTP callers.
type Commander interface {
	ExecuteCommand(ctx context.Context, name string) (domain.CommandResult, error)
	SetMotionMode(ctx context.Context, mode string) (domain.CommandResult, error)
	Commands() []app.CommandSpec
	KeepaliveActive() bool
}

// StatusSource provides point-in-time snapshots.
type StatusSource interface {
	Battery() domain.BatteryState
	Snapshot() domain.Status
}

// FrameSource provides encoded frames for streaming.
type FrameSource interface {
	Cursor() *app.FrameCursor
	ContentType() string
}

// Server is the gateway HTTP API.
type Server struct {
	app      *fiber.App
	commands Commander
	status   StatusSource
	frames   FrameSource
	logger   log.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates the API server and registers its routes.
func NewServer(commands Commander, status StatusSource, frames FrameSource, logger log.Logger) *Server {
	s := &Server{
		commands: commands,
		status:   status,
		frames:   frames,
		logger:   log.With(logger, log.String("component", "httpapi")),
		done:     make(chan struct{}),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "go2relay",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(s.requestLogger)

	s.app.Get("/battery", s.getBattery)
	s.app.Get("/status", s.getStatus)
	s.app.Get("/video_feed", s.getVideoFeed)
	s.app.Get("/commands", s.getCommands)
	s.app.Get("/keepalive", s.getKeepalive)
	s.app.Post("/command", s.postCommand)
	s.app.Post("/motion_mode", s.postMotionMode)

	return s
}

// Serve serves on ln until Shutdown is called. A Server serves once; create
// a new one to serve again.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http api listening", log.String("addr", ln.Addr().String()))
	return s.app.Listener(ln)
}

// Shutdown ends open video streams and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	id := uuid.NewString()
	c.Set("X-Request-ID", id)

	err := c.Next()

	s.logger.Debug("http request",
		log.String("request_id", id),
		log.String("method", c.Method()),
		log.String("path", c.Path()),
		log.Int("status", c.Response().StatusCode()),
		log.Duration("duration", time.Since(start)),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", log.String("path", c.Path()), log.Err(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) getBattery(c *fiber.Ctx) error {
	return c.JSON(s.status.Battery())
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	return c.JSON(s.status.Snapshot())
}

func (s *Server) getCommands(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"commands": s.commands.Commands()})
}

func (s *Server) getKeepalive(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"active": s.commands.KeepaliveActive()})
}

func (s *Server) getVideoFeed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+boundary)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	cursor := s.frames.Cursor()
	contentType := s.frames.ContentType()
	next := func() ([]byte, bool) {
		data, _, ok := cursor.Next()
		return data, ok
	}

	var stream fasthttp.StreamWriter = func(w *bufio.Writer) {
		if err := writeStream(w, next, contentType, streamIdle, streamHeartbeat, s.done); err != nil {
			s.logger.Debug("video client gone", log.Err(err))
		}
	}
	c.Context().SetBodyStreamWriter(stream)
	return nil
}
