package api

import (
	"context"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/samcharles93/genserve/internal/logger"
	"github.com/samcharles93/genserve/internal/metrics"
)

// Generator produces text for a prompt. *modelhost.Host implements it.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

type GenerateRequest struct {
	Text *string `json:"text"`
}

type GenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

type Server struct {
	gen   Generator
	log   logger.Logger
	stats *metrics.Collectors
}

type Option func(*Server)

func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Server) { s.stats = c }
}

func NewServer(gen Generator, opts ...Option) *Server {
	s := &Server{gen: gen, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register installs the shared middleware and mounts the generation
// endpoint. CORS allows every origin.
func (s *Server) Register(e *echo.Echo) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
	}))
	e.Use(requestContext(s.log))
	e.Use(requestLog())
	e.POST("/generate", s.handleGenerate)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	if s.gen == nil {
		return s.fail(c, http.StatusInternalServerError, typeServer, "model not loaded")
	}

	req, err := decodeGenerateRequest(c.Request().Body)
	if err != nil {
		log.Debug("rejected request", "error", err)
		return s.fail(c, http.StatusBadRequest, typeInvalidRequest, err.Error())
	}

	out, err := s.gen.Generate(ctx, *req.Text)
	if err != nil {
		status, typ, msg := statusFor(err)
		log.Warn("generate failed", "status", status, "error", err)
		return s.fail(c, status, typ, msg)
	}

	s.stats.ObserveRequest(http.StatusOK)
	return c.JSON(http.StatusOK, GenerateResponse{GeneratedText: out})
}

func (s *Server) fail(c *echo.Context, status int, typ, msg string) error {
	s.stats.ObserveRequest(status)
	return writeError(c, status, typ, msg)
}

// decodeGenerateRequest accepts exactly one JSON object with a string
// "text" field. An empty string is valid.
func decodeGenerateRequest(r io.Reader) (GenerateRequest, error) {
	var req GenerateRequest
	if r == nil {
		return req, newInvalidRequest("request body is required")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return req, newInvalidRequest("read request body: " + err.Error())
	}
	if len(body) == 0 {
		return req, newInvalidRequest("request body is required")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, newInvalidRequest("invalid JSON body: " + err.Error())
	}
	if req.Text == nil {
		return req, newInvalidRequest(`"text" is required and must be a string`)
	}
	return req, nil
}
