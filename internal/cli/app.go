package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/finsightlab/finsight/internal/analyst"
	"github.com/finsightlab/finsight/internal/compare"
	"github.com/finsightlab/finsight/internal/config"
	"github.com/finsightlab/finsight/internal/dataflows"
	"github.com/finsightlab/finsight/internal/storage/sqlite"
)

// app wires the data sources, store, and analyst into the compare
// service for the CLI commands.
type app struct {
	cfg   *config.Config
	svc   *compare.Service
	store *sqlite.Store
}

// newApp builds the service stack. Commands that never generate
// commentary pass withAnalyst=false so they work without a Google API
// key.
func newApp(ctx context.Context, cfg *config.Config, withAnalyst bool) (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "finsight.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var commentator compare.Commentator
	if withAnalyst {
		a, err := analyst.New(ctx, cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		commentator = a
	}

	svc := compare.NewService(
		cfg,
		dataflows.NewFinnhubClient(cfg),
		dataflows.NewYahooFinanceClient(cfg),
		commentator,
		store,
		dataflows.NewArticleScraper(cfg),
	)

	return &app{cfg: cfg, svc: svc, store: store}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// loadManagedConfig backs the runtime config with the on-disk config
// file, creating the file on first run. Secrets supplied through the
// environment survive a config file that does not pin them.
func loadManagedConfig(cfg *config.Config, opts ...config.ManagerOption) (*config.Manager, *config.Config, error) {
	opts = append([]config.ManagerOption{config.WithInitialConfig(cfg)}, opts...)
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, nil, err
	}

	loaded := mgr.Get()
	if loaded.FinnhubAPIKey == "" {
		loaded.FinnhubAPIKey = cfg.FinnhubAPIKey
	}
	if loaded.GoogleAPIKey == "" {
		loaded.GoogleAPIKey = cfg.GoogleAPIKey
	}
	return mgr, &loaded, nil
}
