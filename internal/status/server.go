package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Server serves /health and /status.
type Server struct {
	App     *fiber.App
	tracker *Tracker
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func NewServer(tracker *Tracker) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrHandler,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})
	app.Use(recover.New())

	s := &Server{App: app, tracker: tracker}
	app.Get("/health", s.handleHealth)
	app.Get("/status", s.handleStatus)
	return s
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.tracker.Snapshot()
	return c.JSON(healthResponse{
		Status: "ok",
		Uptime: time.Since(snap.StartedAt).Truncate(time.Second).String(),
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.tracker.Snapshot())
}

// Bind opens the listener for addr. A failure is a startup configuration
// problem, reported before the scheduler starts.
func Bind(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &config.ConfigError{Field: "STATUS_ADDR", Reason: err.Error()}
	}
	return ln, nil
}

// Serve serves on ln until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
		errCh <- s.App.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server serve: %w", err)
	case <-ctx.Done():
		if err := s.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	}
}

func fiberErrHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Error().
		Err(err).
		Int("status_code", code).
		Str("path", c.Path()).
		Msg("status server error")

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
