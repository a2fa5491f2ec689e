// Package app wires configuration, logging, stores and the router for the entry points.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/api"
	"stealthcompany.com/appointmentbot/internal/config"
	"stealthcompany.com/appointmentbot/internal/dal"
	"stealthcompany.com/appointmentbot/internal/format"
	"stealthcompany.com/appointmentbot/internal/ratelimit"
	"stealthcompany.com/appointmentbot/pkg/zerolog_config"
)

// Init loads configuration, starts the logger and sets the time zone
// calendar parts are read in
func Init(appName string) (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	zerolog_config.SetAppPrefix(appName)
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, cfg.LogLevel); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	format.UseLocation(loc)

	log.Info().
		Str("env", cfg.Env).
		Str("store", cfg.StoreDriver).
		Str("tz", loc.String()).
		Msg("Configuration loaded")
	return cfg, nil
}

// NewHandle creates the lazily connected store handle for cfg
func NewHandle(cfg *config.Config) (*dal.Handle, error) {
	connect, err := dal.Connector(cfg)
	if err != nil {
		return nil, err
	}
	return dal.NewHandle(connect), nil
}

// NewRouter builds the HTTP handler. With rate limiting on, a reachable
// Redis shares counters across processes; otherwise each process counts alone.
func NewRouter(ctx context.Context, cfg *config.Config, stores api.StoreProvider) (http.Handler, error) {
	opts := api.RouterOptions{
		Development:    cfg.IsDev(),
		AllowedOrigins: cfg.Origins(),
	}

	if cfg.RateLimitEnabled {
		limiter, err := newLimiter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts.Limiter = limiter
	}

	return api.SetupRoutes(stores, opts), nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info().Msg("Rate limiting with in-process counters")
		return ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow), nil
	}

	client, err := ratelimit.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warn().Err(err).Msg("Redis not available, rate limiting with in-process counters")
		return ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow), nil
	}
	log.Info().Str("redis", cfg.RedisAddr).Msg("Rate limiting with Redis counters")
	return ratelimit.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow), nil
}

// EnsureSchema connects through handle, which provisions the backend on
// its first connect
func EnsureSchema(ctx context.Context, handle *dal.Handle) error {
	if _, err := handle.Stores(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}
