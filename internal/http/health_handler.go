package http

import (
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"webstats/internal/schema"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	Schema    string    `json:"schema_status"`
}

// HealthAction returns the health check handler. Besides pinging the
// database it checks that the analytics tables the engine reads exist.
func HealthAction(tables schema.Tables) func(ctx *cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		dbStatus := "ok"
		schemaStatus := "ok"

		db := ctx.DBManager.GetConnection()
		if db == nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection unavailable")
		} else {
			sqlDB, err := db.DB()
			if err != nil {
				dbStatus = "error"
				ctx.Logger.Error("Database connection error", slog.Any("error", err))
			} else if err := sqlDB.PingContext(ctx.Context()); err != nil {
				dbStatus = "error"
				ctx.Logger.Error("Database ping failed", slog.Any("error", err))
			}
		}

		if dbStatus == "ok" {
			for _, logical := range []string{schema.Sessions, schema.Views, schema.Visitors} {
				if !db.Migrator().HasTable(tables.Name(logical)) {
					schemaStatus = "missing " + tables.Name(logical)
					ctx.Logger.Warn("Analytics table missing", slog.String("table", tables.Name(logical)))
					break
				}
			}
		} else {
			schemaStatus = "unknown"
		}

		health := HealthStatus{
			Status:    "ok",
			Timestamp: time.Now(),
			DBStatus:  dbStatus,
			Schema:    schemaStatus,
		}

		if dbStatus != "ok" || schemaStatus != "ok" {
			health.Status = "degraded"
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
		}

		return ctx.JSON(health)
	}
}
