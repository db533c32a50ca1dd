package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"example.com/fitness/internal/auth"
	"example.com/fitness/internal/cache"
	"example.com/fitness/internal/client"
	"example.com/fitness/internal/config"
	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/render"
	"example.com/fitness/internal/session"
	"example.com/fitness/internal/storage"
)

type appOptions struct {
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
}

// app holds the wired components shared by every command.
type app struct {
	cfg        config.Config
	catalog    config.Catalog
	logger     *slog.Logger
	store      storage.Store
	provider   *auth.Provider
	sessions   *session.Manager
	aggregator *domain.Aggregator
	out        *render.Renderer
	errOut     *render.Renderer
	stdout     io.Writer
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = cfg.LogLevel
	}
	logger := slog.New(slog.NewTextHandler(opts.stderr, &slog.HandlerOptions{Level: level}))

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cfg.RecentCount > 0 {
		catalog.RecentCount = cfg.RecentCount
	}

	store, err := storage.Open(cfg.Store, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	provider := auth.NewProvider(cfg.ProviderConfig())
	sessions := session.NewManager(store, provider,
		session.WithLogger(logger),
		session.WithClaimsConfig(cfg.ClaimsConfig()),
		session.WithLoginTimeout(cfg.LoginTimeout),
	)
	api := client.New(cfg.APIURL, cfg.HTTPTimeout)
	aggregator := domain.NewAggregator(api, sessions,
		domain.WithRules(catalog.Achievements),
		domain.WithDetailCache(cache.New(cfg.DetailCacheTTL)),
		domain.WithLogger(logger),
	)

	// A different user must never see the previous user's snapshot.
	sessions.Subscribe(func(session.Session) { aggregator.Reset() })
	sessions.Restore(ctx)

	return &app{
		cfg:        cfg,
		catalog:    catalog,
		logger:     logger,
		store:      store,
		provider:   provider,
		sessions:   sessions,
		aggregator: aggregator,
		out:        render.New(opts.stdout, catalog.Types),
		errOut:     render.New(opts.stderr, catalog.Types),
		stdout:     opts.stdout,
	}, nil
}

func (a *app) close() {
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("closing session store", "error", err)
		}
	}
}
