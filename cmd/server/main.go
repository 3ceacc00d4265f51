package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/alias"
	"github.com/averba/model-relay/internal/cache"
	"github.com/averba/model-relay/internal/config"
	"github.com/averba/model-relay/internal/directory"
	"github.com/averba/model-relay/internal/gateway"
	"github.com/averba/model-relay/internal/platform/logger"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/internal/server"
	"github.com/averba/model-relay/internal/server/validator"

	// Import providers to trigger init() registration
	_ "github.com/averba/model-relay/internal/llm/anthropic"
	_ "github.com/averba/model-relay/internal/llm/ollama"
	_ "github.com/averba/model-relay/internal/llm/openai"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	validator.InitValidator()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aliases := alias.New(cfg.Aliases.Entries, cfg.Aliases.DefaultModel)

	dir, err := loadDirectory(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to load model directory", zap.Error(err))
	}
	log.Info("Model directory loaded",
		zap.String("source", cfg.Directory.Source),
		zap.Int("active", len(dir.Active())),
	)

	respCache := buildCache(ctx, cfg, log)

	service := gateway.NewService(log, aliases, dir, respCache, cfg.Cache.TTL())
	if n := service.Bootstrap(); n == 0 {
		log.Warn("No provider clients created; all requests will fail resolution")
	} else {
		log.Info("Provider clients ready", zap.Int("bindings", n))
	}

	registry := relay.NewRegistry()
	registry.StartSweeper(ctx, cfg.Sessions.SweepInterval(), cfg.Sessions.IdleTimeout(), log)

	srv := server.New(cfg, log, service, registry)
	if err := srv.Run(ctx); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}

func loadDirectory(ctx context.Context, cfg *config.Config, log *zap.Logger) (directory.Directory, error) {
	if cfg.Directory.Source == "sqlite" {
		return directory.LoadSQLite(ctx, cfg.Directory.SQLitePath)
	}

	records := make([]directory.ModelRecord, 0, len(cfg.Directory.Models))
	for _, m := range cfg.Directory.Models {
		provider, err := directory.ParseProvider(m.Provider)
		if err != nil {
			log.Warn("Skipping model with unknown provider",
				zap.String("id", m.ID),
				zap.String("provider", m.Provider),
			)
			continue
		}
		records = append(records, directory.ModelRecord{
			ID:              m.ID,
			DisplayName:     m.DisplayName,
			Provider:        provider,
			InternalModelID: m.Model,
			EndpointURL:     m.EndpointURL,
			APIKeyRef:       m.APIKey,
			IsDefault:       m.Default,
			IsActive:        m.Active,
		})
	}
	return directory.NewStatic(records), nil
}

func buildCache(ctx context.Context, cfg *config.Config, log *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}

	if cfg.Cache.Backend == "redis" {
		r := cache.NewRedis(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			log.Warn("Redis unreachable, falling back to in-memory cache", zap.Error(err))
			return cache.NewLRU(cfg.Cache.Capacity)
		}
		log.Info("Response cache backed by Redis", zap.String("addr", cfg.Cache.Redis.Addr))
		return r
	}

	return cache.NewLRU(cfg.Cache.Capacity)
}
