// Package internal contains core application functionality
package internal

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"webstats/internal/config"
	"webstats/internal/database"
	"webstats/internal/geo"
	"webstats/internal/hostdata"
	"webstats/internal/query"
)

// Application wraps cartridge.Application with webstats-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // webstats DB manager with migration methods
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithRoutes(cfg, MountAppRoutes)
}

// NewAppWithRoutes creates a new application with custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:         cfg,
		Logger:         logger,
		DBManager:      dbManager,
		RouteMountFunc: routeMount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}

// NewQueryEngine wires the query engine to db: the catalog for the
// configured table prefixes, the gorm executor and the host lookups.
func NewQueryEngine(db *gorm.DB, cfg *config.Config, logger *slog.Logger) *query.Engine {
	tables := database.TablesFor(cfg)
	lookups := query.Lookups{
		Users:     hostdata.NewUserDirectory(db, tables, logger),
		Terms:     hostdata.NewTermDirectory(db, tables),
		Countries: geo.Default(),
	}
	return query.NewEngine(
		query.NewCatalog(tables),
		query.NewGormExecutor(db),
		lookups,
		logger,
		query.Options{
			DefaultLimit:       cfg.QueryDefaultLimit,
			MaxLimit:           cfg.QueryMaxLimit,
			DefaultAttribution: query.Attribution(cfg.QueryDefaultAttribution),
			Location:           cfg.QueryLocation(),
		},
	)
}
