// Package server is the inbound webhook surface. The mail provider
// posts one JSON payload per delivery; the handler acknowledges with
// 200 unconditionally and does the real work off the request path, so
// the provider never learns whether a message was dropped and never
// retries into a slow reasoning round.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/courier/internal/ports/primary"
	"github.com/example/courier/internal/version"
)

// handleTimeout bounds one background inbound dispatch, tool calls and
// model rounds included.
const handleTimeout = 10 * time.Minute

// Server hosts the webhook and health endpoints.
type Server struct {
	app     *fiber.App
	inbound primary.InboundService
	logger  *slog.Logger
}

// New creates the HTTP server and registers routes.
func New(inbound primary.InboundService, logger *slog.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "courier",
			DisableStartupMessage: true,
		}),
		inbound: inbound,
		logger:  logger,
	}

	s.app.Get("/health", s.handleHealth)
	s.app.Post("/webhook/inbound/:agent", s.handleWebhook)

	return s
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("webhook server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": version.String(),
	})
}

// handleWebhook acknowledges immediately and processes in the
// background. The response body never varies with the outcome.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	agent := c.Params("agent")

	var payload map[string]any
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		s.logger.Warn("webhook body is not JSON", "agent", agent, "error", err)
		return c.JSON(fiber.Map{"status": "ok"})
	}

	go s.dispatch(agent, payload)

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) dispatch(agent string, payload map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	result, err := s.inbound.HandlePayload(ctx, agent, payload)
	if err != nil {
		s.logger.Error("inbound handling failed", "agent", agent, "error", err)
	}
	if result != nil {
		s.logger.Info("inbound handled",
			"agent", agent, "outcome", result.Outcome,
			"flow_id", result.FlowID, "reason", result.Reason)
	}
}
