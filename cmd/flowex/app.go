package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowex/flowex-go/internal/config"
	"github.com/flowex/flowex-go/internal/metrics"
	"github.com/flowex/flowex-go/internal/session"
	"github.com/flowex/flowex-go/internal/state"
	"github.com/flowex/flowex-go/internal/storage"
)

// app bundles the wired core shared by every subcommand: config, metrics,
// the rehydrated store, and the session manager.
type app struct {
	cfg     *config.Config
	metrics *metrics.Registry
	store   *state.Store
	manager *session.Manager
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	return config.Default(), nil
}

func buildStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil
	case "file":
		return storage.NewFile(cfg.Storage.Dir)
	case "redis":
		return storage.NewRedisAddr(cfg.Storage.RedisAddr), nil
	case "postgres":
		return storage.NewPostgresDSN(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newApp wires config, storage, store, and session manager, and restores
// any persisted session.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	backend, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}

	reg := metrics.New()
	store := state.New(state.Options{
		Storage: backend,
		Metrics: reg,
		DevMode: cfg.DevMode,
	})

	store.Use(state.NotificationMiddleware(store))

	rehydrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store.Rehydrate(rehydrateCtx)

	client := session.NewClient(session.ClientConfig{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.APITimeout(),
		LoginRPS: cfg.API.LoginRPS,
		Burst:    cfg.API.Burst,
	}, reg)
	manager := session.NewManager(store, client, session.Config{
		RotateRefreshToken: cfg.Auth.RotateRefreshToken,
		Timeout:            cfg.APITimeout(),
	})

	if err := manager.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("Stored session could not be restored")
	}

	return &app{cfg: cfg, metrics: reg, store: store, manager: manager}, nil
}

func (a *app) close() {
	a.store.Close()
}
