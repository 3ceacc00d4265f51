package server

import (
	"github.com/averba/model-relay/internal/server/middleware"
	v1 "github.com/averba/model-relay/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	// Health check stays public.
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	api.Use(limiter.Middleware())
	{
		chatHandler := v1.NewChatHandler(s.service, s.logger)
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		streamHandler := v1.NewStreamHandler(s.service, s.logger)
		api.POST("/chat/stream", streamHandler.HandleStream)

		wsHandler := v1.NewWSHandler(s.service, s.registry, s.logger)
		api.GET("/chat/ws", wsHandler.Handle)

		modelHandler := v1.NewModelHandler(s.service, s.logger)
		api.GET("/models", modelHandler.ListModels)
	}
}
