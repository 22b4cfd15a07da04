// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/hooks"
	"github.com/des-work/Arcano-Desk-sub001/internal/logging"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/des-work/Arcano-Desk-sub001/internal/telemetry"
	"go.uber.org/zap"
)

// App is one wired instance of the study assistant: storage, state store,
// model client and the hooks that join them.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Storage *storage.Service
	Store   *store.Store
	Client  *ollama.Client
	Hooks   *hooks.Hooks

	shutdownTracing telemetry.ShutdownFunc
}

// Opener builds an App for a command.
type Opener func(ctx context.Context, cfg *config.Config) (*App, error)

// Open wires an App from cfg and restores persisted state. A state that
// fails to load is logged and left at its defaults.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, os.Stderr, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	svc, err := storage.NewServiceFromConfig(ctx, cfg.Storage, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		Timeout:      cfg.OllamaTimeout(),
		DefaultModel: cfg.Ollama.DefaultModel,
		MaxRetries:   cfg.Ollama.MaxRetries,
		RetryDelay:   cfg.RetryDelay(),
		Logger:       logger,
	})
	return assemble(ctx, cfg, logger, svc, client, shutdown), nil
}

// assemble joins the parts and hydrates the store.
func assemble(ctx context.Context, cfg *config.Config, logger *zap.Logger, svc *storage.Service, client *ollama.Client, shutdown telemetry.ShutdownFunc) *App {
	st := store.New(svc, store.WithLogger(logger))
	if err := errors.Join(st.Hydrate(ctx), st.Refresh(ctx)); err != nil {
		logger.Warn("STATE_RESTORE_FAILED", zap.Error(err))
	}
	return &App{
		Config:          cfg,
		Logger:          logger,
		Storage:         svc,
		Store:           st,
		Client:          client,
		Hooks:           hooks.New(client, st, logger),
		shutdownTracing: shutdown,
	}
}

// Close releases the storage backend and flushes traces and logs.
func (a *App) Close(ctx context.Context) error {
	a.Hooks.Close()
	err := errors.Join(a.Storage.Close(), a.shutdownTracing(ctx))
	logging.Sync(a.Logger)
	return err
}

func (a *App) now() time.Time { return time.Now().UTC() }
