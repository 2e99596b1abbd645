// Package api exposes the assessment pipeline over HTTP. The layer is
// deliberately thin: handlers validate and bind, then route into the
// service, feedback, calibration, and params packages.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/calibration"
	"github.com/pharmaguard/pgx-server/internal/config"
	"github.com/pharmaguard/pgx-server/internal/feedback"
	"github.com/pharmaguard/pgx-server/internal/middleware"
	"github.com/pharmaguard/pgx-server/internal/params"
	"github.com/pharmaguard/pgx-server/internal/service"
)

// Server is the HTTP server.
type Server struct {
	cfg      *config.Config
	pipeline *service.Pipeline
	learner  *feedback.Learner
	store    feedback.Store
	monitor  *calibration.Monitor
	registry *params.Registry
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer wires the HTTP surface. monitor and registry may be nil;
// their routes then report 503.
func NewServer(
	cfg *config.Config,
	pipeline *service.Pipeline,
	learner *feedback.Learner,
	store feedback.Store,
	monitor *calibration.Monitor,
	registry *params.Registry,
	logger *logrus.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.RateLimit))

	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		learner:  learner,
		store:    store,
		monitor:  monitor,
		registry: registry,
		logger:   logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/assess", s.handleAssess)

		v1.POST("/feedback", s.handleFeedback)
		v1.GET("/priors", s.handleListPriors)
		v1.PUT("/priors/:gene", s.handleSetPrior)
		v1.POST("/priors/recalibrate", s.handleRecalibrate)

		v1.GET("/calibration", s.handleCalibrationReport)
		v1.POST("/outcomes/:id/resolve", s.handleResolveOutcome)

		v1.GET("/params", s.handleListParams)
		v1.GET("/params/current", s.handleCurrentParams)
		v1.GET("/params/diff", s.handleDiffParams)
		v1.POST("/params/rollback/:version", s.handleRollbackParams)
	}
}
