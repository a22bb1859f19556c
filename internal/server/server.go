// Package server provides the HTTP API for the scoring service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/corpus"
	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
	"github.com/danielpatrickdp/adaptive-detect/internal/tuner"
)

// Purger drops cached analyzer scores. *analyzer.Cached satisfies it.
type Purger interface {
	Purge()
}

// Deps are the components the handlers call into.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Feedback     *feedback.Store
	Analytics    *analytics.Aggregator
	Tuner        *tuner.Tuner
	States       *state.Store
	Corpus       *corpus.Store
	Users        *auth.Directory
	Cache        Purger // optional
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	BodyLimit    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
}

// Server provides HTTP endpoints for detection, feedback and learning.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	limiter *limiter
	logger  *zap.Logger
	config  *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Orchestrator == nil || deps.Feedback == nil || deps.Analytics == nil ||
		deps.Tuner == nil || deps.States == nil || deps.Corpus == nil || deps.Users == nil {
		return nil, fmt.Errorf("server dependencies are incomplete")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8000}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		echo:    e,
		deps:    deps,
		limiter: newLimiter(cfg.RateLimit),
		logger:  logger,
		config:  cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("", auth.IdentityMiddleware(s.deps.Users), s.limiter.middleware())

	api.POST("/detect", s.handleDetect)
	api.POST("/detect_cross_user", s.handleDetectCrossUser)
	api.POST("/documents", s.handleAddDocument)
	api.POST("/detect_language", s.handleDetectLanguage)

	api.POST("/feedback", s.handleFeedback)
	api.GET("/feedback/analytics", s.handleAnalytics)
	api.GET("/feedback/stats", s.handleStats)
	api.GET("/feedback/history", s.handleHistory)
	api.POST("/feedback/retrain", s.handleRetrain)

	api.GET("/learning/weights", s.handleWeights)
	api.GET("/learning/versions", s.handleVersions, auth.Require(auth.CapViewHistory))
	api.POST("/learning/rollback/:version_id", s.handleRollback)

	api.POST("/user/login", s.handleLogin)
	api.POST("/user/role/:username", s.handleSetRole, auth.Require(auth.CapManageUsers))

	refs := auth.Require(auth.CapManageReferences)
	api.POST("/add_reference", s.handleAddReference, refs)
	api.GET("/list_references", s.handleListReferences)
	api.GET("/reference/:doc_id", s.handleGetReference)
	api.DELETE("/delete_reference/:doc_id", s.handleDeleteReference, refs)
	api.DELETE("/clear_references", s.handleClearReferences, refs)
}

// Echo exposes the underlying router, used by tests and for extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	WeightsVersion string `json:"weights_version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", WeightsVersion: s.deps.Tuner.Current().VersionID})
}

// #region errors

// handleError maps domain errors to HTTP status codes before echo renders them.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	s.echo.DefaultHTTPErrorHandler(s.toHTTPError(err), c)
}

func (s *Server) toHTTPError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput),
		errors.Is(err, feedback.ErrValidation),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrUnknownRole),
		errors.Is(err, corpus.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, tuner.ErrPermission):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, state.ErrVersionNotFound),
		errors.Is(err, corpus.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, tuner.ErrRetrainInProgress),
		errors.Is(err, corpus.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, tuner.ErrGateRejected):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	s.logger.Error("request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// #endregion errors

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
