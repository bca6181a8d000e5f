package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webstats/internal"
	"webstats/internal/config"
	"webstats/internal/database"
	"webstats/internal/hostdata"
	"webstats/internal/schema"
	"webstats/internal/seeder"
)

// HostPrefix is the host table prefix used by test databases.
const HostPrefix = "host_"

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with webstats' interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// Tables returns the resolver test databases are migrated with.
func Tables() schema.Tables {
	return schema.NewTables("", HostPrefix)
}

// SetupTestDB creates a test database with the analytics and host tables migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := database.Migrate(db, Tables()); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	if len(tableNames) == 0 {
		return
	}
	CleanTables(db, tableNames)
}

// CleanTables cleans specific tables or all tables if none specified
func CleanTables(db *gorm.DB, tables []string) {
	if len(tables) == 0 {
		CleanAllTables(db)
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// Fixture writes analytics and host rows for a test, failing it on error.
type Fixture struct {
	t       *testing.T
	DB      *gorm.DB
	builder *seeder.Builder
}

// NewFixture returns a fixture on a fresh test database.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	db := SetupTestDB(t)
	return &Fixture{t: t, DB: db, builder: seeder.NewBuilder(db, Tables())}
}

// Session writes a session with its views and returns it.
func (f *Fixture) Session(in seeder.SessionInput) *schema.Session {
	f.t.Helper()
	s, err := f.builder.Session(in)
	require.NoError(f.t, err)
	return s
}

// User writes a host user.
func (f *Fixture) User(u hostdata.User) hostdata.User {
	f.t.Helper()
	require.NoError(f.t, f.builder.User(&u))
	return u
}

// Term writes a host term attached to the given content objects.
func (f *Fixture) Term(term hostdata.Term, objectIDs ...int64) hostdata.Term {
	f.t.Helper()
	require.NoError(f.t, f.builder.Term(&term, objectIDs...))
	return term
}

// Views pages through uris, each viewed for one minute.
func Views(uris ...string) []seeder.ViewInput {
	views := make([]seeder.ViewInput, len(uris))
	for i, uri := range uris {
		views[i] = seeder.ViewInput{URI: uri, Title: uri, Duration: 60}
	}
	return views
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB, apiKey string) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.APIKey = apiKey
	appConfig.HostTablePrefix = HostPrefix
	appConfig.TablePrefix = ""

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
