package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "webstats/api/v1"
	"webstats/internal/config"
	"webstats/internal/database"
	"webstats/internal/http"
	"webstats/internal/http/middleware"
)

// apiCORSConfig lets dashboards on other origins call the query API.
var apiCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountAppRoutes mounts the query API using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()
	tables := database.TablesFor(cfg)

	// Rate limiting would interfere with testing, so it only applies in production
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Queries are expensive compared to page loads: 120 per minute per IP
	apiRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// API clients are scripts and dashboards, not browser navigations,
	// so Sec-Fetch-Site validation is off. CORS runs first so 401 responses
	// carry CORS headers.
	apiConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         apiCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware: []fiber.Handler{
			apiRateLimiter,
			middleware.APIKeyAuth(cfg.APIKey, logger),
		},
	}

	engine := NewQueryEngine(db, cfg, logger)
	api := v1.NewQueryHandler(engine, cfg.QueryTimeout(), cfg.BatchWorkers)

	// Health check endpoint
	health := http.HealthAction(tables)
	srv.Get("/_health", health)
	srv.Head("/_health", health)

	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	srv.Post("/api/v1/query", api.QueryAction, apiConfig)
	srv.Options("/api/v1/query", preflight, apiConfig)
	srv.Post("/api/v1/query/batch", api.BatchAction, apiConfig)
	srv.Options("/api/v1/query/batch", preflight, apiConfig)
	srv.Get("/api/v1/catalog", api.CatalogAction, apiConfig)
	srv.Options("/api/v1/catalog", preflight, apiConfig)
}
