package database

import (
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"webstats/internal/config"
	"webstats/internal/hostdata"
	"webstats/internal/schema"
)

// DBManager wraps cartridge's sqlite.Manager with webstats-specific migration methods.
type DBManager struct {
	*sqlite.Manager
	tables schema.Tables
	logger *slog.Logger
}

// NewDBManager creates a new database manager using cartridge's sqlite.Manager.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	sqliteCfg := sqlite.Config{
		Path:         cfg.DatabaseName,
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		tables:  TablesFor(cfg),
		logger:  logger,
	}
}

// TablesFor returns the table name resolver for the configured prefixes.
func TablesFor(cfg *config.Config) schema.Tables {
	return schema.NewTables(cfg.TablePrefix, cfg.HostTablePrefix)
}

// Init initializes the database connection.
func (dm *DBManager) Init() error {
	_, err := dm.Manager.Connect()
	return err
}

// Tables returns the resolver the manager migrates with.
func (dm *DBManager) Tables() schema.Tables {
	return dm.tables
}

// MigrateDatabase creates the analytics and host tables. Production schemas
// belong to the tracker and the host platform; this serves development and
// demo databases.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Migrate(tx, dm.tables)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}

// Migrate creates every table on db.
func Migrate(db *gorm.DB, tables schema.Tables) error {
	if err := schema.AutoMigrate(db, tables); err != nil {
		return err
	}
	return hostdata.AutoMigrate(db, tables)
}
