// Package http exposes the reminder engine over HTTP: an on-demand pass
// trigger, a test push endpoint, health and metrics.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

// PassTrigger starts one reminder pass and waits for its report.
type PassTrigger interface {
	RunOnce(ctx context.Context) (*domain.Report, error)
}

// TestSender delivers the fixed test notification to one user.
type TestSender interface {
	SendTest(ctx context.Context, userID string) (domain.DeliveryOutcome, error)
}

type Config struct {
	Host string
	Port int
	// CronSecret guards the trigger endpoints with a bearer token. Empty
	// disables the check.
	CronSecret string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	echo    *echo.Echo
	trigger PassTrigger
	tester  TestSender
	logger  *logging.Logger
	config  *Config
}

func NewServer(trigger PassTrigger, tester TestSender, logger *logging.Logger, cfg *Config) (*Server, error) {
	if trigger == nil {
		return nil, fmt.Errorf("pass trigger cannot be nil")
	}
	if tester == nil {
		return nil, fmt.Errorf("test sender cannot be nil")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8080,
		}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	logger = logging.OrNop(logger).Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:    e,
		trigger: trigger,
		tester:  tester,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api", s.bearerAuth())
	api.GET("/cron/reminders", s.handleRunPass)
	api.POST("/cron/reminders", s.handleRunPass)
	api.POST("/push/test", s.handleTestPush)
}

// requestLogger logs every request and threads the request id into the
// request context so downstream logs carry it.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), rid)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

func (s *Server) bearerAuth() echo.MiddlewareFunc {
	secret := []byte(s.config.CronSecret)
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(echo.Context) bool { return len(secret) == 0 },
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), secret) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			s.logger.Warn(c.Request().Context(), "unauthorized trigger", zap.String("path", c.Path()))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		},
	})
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type TestPushRequest struct {
	UserID string `json:"user_id"`
}

type TestPushResponse struct {
	Success bool                    `json:"success"`
	Sent    int                     `json:"sent"`
	Failed  int                     `json:"failed"`
	Results []domain.EndpointResult `json:"results"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRunPass runs a pass synchronously and returns its report.
func (s *Server) handleRunPass(c echo.Context) error {
	report, err := s.trigger.RunOnce(c.Request().Context())
	if err == nil {
		return c.JSON(http.StatusOK, report)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPassInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if report != nil {
		return c.JSON(status, report)
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleTestPush(c echo.Context) error {
	var req TestPushRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id is required"})
	}

	outcome, err := s.tester.SendTest(c.Request().Context(), req.UserID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoSubscriptions):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no subscriptions found"})
	case domain.IsTransient(err):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error(c.Request().Context(), "test push failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	results := outcome.Results
	if results == nil {
		results = []domain.EndpointResult{}
	}
	return c.JSON(http.StatusOK, TestPushResponse{
		Success: outcome.Delivered(),
		Sent:    outcome.Succeeded,
		Failed:  outcome.Failed,
		Results: results,
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
