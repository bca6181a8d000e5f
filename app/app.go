// Package app provides the public API for programs embedding webstats.
package app

import (
	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"webstats/internal"
	"webstats/internal/config"
	"webstats/internal/database"
	"webstats/internal/query"
)

// Re-export core types
type (
	Application  = internal.Application
	Config       = config.Config
	DBManager    = database.DBManager
	Engine       = query.Engine
	QueryRequest = query.QueryRequest
	QueryResult  = query.QueryResult
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	return config.GetConfig()
}

// NewApp creates a new application with default routes
func NewApp() (*Application, error) {
	return internal.NewApp()
}

// NewAppWithRoutes creates a new application with custom route mounting
func NewAppWithRoutes(cfg *Config, routeMount func(*cartridge.Server)) (*Application, error) {
	return internal.NewAppWithRoutes(cfg, routeMount)
}

// MountAppRoutes mounts the query API (for embedders to call after their routes)
func MountAppRoutes(srv *cartridge.Server) {
	internal.MountAppRoutes(srv)
}

// NewQueryEngine builds a query engine over db with the configured defaults.
func NewQueryEngine(db *gorm.DB, cfg *Config, logger *slog.Logger) *Engine {
	return internal.NewQueryEngine(db, cfg, logger)
}
