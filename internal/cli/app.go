package cli

import (
	"context"
	"fmt"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/config"
	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/internal/store"
	"healthTrackerAPI/services"
)

// App is the wired engine shared by the server and the one-shot commands.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Store        store.Store
	Catalog      *achievement.Catalog
	Achievements *services.AchievementService
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	catalog, err := achievement.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newAppWithStore(cfg, log, st, catalog), nil
}

func newAppWithStore(cfg *config.Config, log *logger.Logger, st store.Store, catalog *achievement.Catalog) *App {
	clock := services.SystemClock{Location: cfg.Location}
	agg := services.NewAggregator(st, catalog, clock, log, cfg.StreakHorizonDays, cfg.QueryTimeout)
	pts := services.NewPointsService(st, log)

	return &App{
		Config:       cfg,
		Log:          log,
		Store:        st,
		Catalog:      catalog,
		Achievements: services.NewAchievementService(st, catalog, agg, pts, clock, log),
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	case config.DriverSQLite:
		return store.OpenSQLite(cfg.SQLitePath)
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("failed to close store", "error", err)
	}
	a.Log.Sync()
}
