package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Aliases   AliasConfig     `mapstructure:"aliases"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sessions  SessionConfig   `mapstructure:"sessions"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port"`
	Env     string   `mapstructure:"env"`
	APIKeys []string `mapstructure:"api_keys"`
}

type AliasConfig struct {
	// Entries maps external model names onto internal model ids, merged
	// over the built-in table.
	Entries      map[string]string `mapstructure:"entries"`
	DefaultModel string            `mapstructure:"default_model"`
}

type DirectoryConfig struct {
	// Source selects where model records come from: "static" (this file)
	// or "sqlite" (the admin-managed database).
	Source     string        `mapstructure:"source"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Models     []ModelConfig `mapstructure:"models"`
}

type ModelConfig struct {
	ID          string `mapstructure:"id"`
	DisplayName string `mapstructure:"display_name"`
	Provider    string `mapstructure:"provider"`
	Model       string `mapstructure:"model"`
	EndpointURL string `mapstructure:"endpoint_url"`
	APIKey      string `mapstructure:"api_key"`
	Default     bool   `mapstructure:"default"`
	Active      bool   `mapstructure:"active"`
}

type CacheConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Backend    string      `mapstructure:"backend"` // "memory" or "redis"
	Capacity   int         `mapstructure:"capacity"`
	TTLSeconds int         `mapstructure:"ttl_seconds"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SessionConfig struct {
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
	IdleTimeoutSeconds   int `mapstructure:"idle_timeout_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("directory.source", "static")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.capacity", 256)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("sessions.sweep_interval_seconds", 30)
	v.SetDefault("sessions.idle_timeout_seconds", 300)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API key indirections
	for i, m := range cfg.Directory.Models {
		if strings.HasPrefix(m.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(m.APIKey, "ENV:")
			val := os.Getenv(envVar)
			if val == "" {
				val = v.GetString(envVar)
			}
			cfg.Directory.Models[i].APIKey = val
		}
	}

	return &cfg, nil
}
