package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/config"
	"github.com/averba/model-relay/internal/gateway"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/internal/server/middleware"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	service  *gateway.Service
	registry *relay.Registry
	http     *http.Server
}

func New(cfg *config.Config, logger *zap.Logger, service *gateway.Service, registry *relay.Registry) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:   engine,
		config:   cfg,
		logger:   logger,
		service:  service,
		registry: registry,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Streaming responses get a grace period rather than an immediate cut.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    ":" + s.config.Server.Port,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("port", s.config.Server.Port))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
