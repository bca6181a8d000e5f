// main.go - Admin control tool for webstats
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"webstats/internal"
	"webstats/internal/config"
	"webstats/internal/database"
	"webstats/internal/query"
	"webstats/internal/schema"
	"webstats/internal/seeder"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&QueryCommand{},
	&CatalogCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	// help and catalog work without a database
	var app *internal.Application
	if cmdName != "help" && cmdName != "catalog" {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Printf("Warning: Failed to initialize app: %v", err)
			log.Println("Proceeding with limited functionality...")
		}
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }
func (c *MigrateCommand) Description() string {
	return "Creates the analytics and host tables (development databases)"
}

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with synthetic traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample sessions" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	sessions := fs.Int("sessions", 5000, "number of sessions to generate")
	seed := fs.Uint64("seed", 1, "random seed; the same seed produces the same data")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	se := seeder.NewSeeder(app.DBManager, app.DBManager.Tables(), slog.Default(), *sessions)
	se.Seed = *seed
	return se.Run(ctx)
}

// QueryCommand runs a QueryRequest read from a JSON or YAML file
type QueryCommand struct{}

func (c *QueryCommand) Name() string { return "query" }
func (c *QueryCommand) Description() string {
	return "Runs a query file: query -f report.yaml [-format table|json]"
}

func (c *QueryCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	file := fs.String("f", "", "query file (.json, .yaml or .yml); - reads JSON from stdin")
	format := fs.String("format", "", "output format: table or json (default: table on a terminal)")
	timeout := fs.Duration("timeout", 0, "query deadline, e.g. 10s (default: querytimeoutseconds)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("usage: %s -f <file>", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run queries")
	}

	req, err := readQueryFile(*file)
	if err != nil {
		return err
	}

	cfg := config.GetConfig()
	engine := internal.NewQueryEngine(app.DBManager.GetConnection(), cfg, slog.Default())

	deadline := cfg.QueryTimeout()
	if *timeout > 0 {
		deadline = *timeout
	}
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	result, err := engine.Run(ctx, req)
	if err != nil {
		if code := query.ErrorCode(err); code != "" {
			return fmt.Errorf("%s: %w", code, err)
		}
		return err
	}

	if resolveFormat(*format, term.IsTerminal(int(os.Stdout.Fd()))) == formatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeTable(os.Stdout, result)
}

func readQueryFile(path string) (*query.QueryRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return query.DecodeRequestYAML(data)
	}
	return query.DecodeRequestJSON(data)
}

// CatalogCommand prints the filters, group-bys and measures
type CatalogCommand struct{}

func (c *CatalogCommand) Name() string        { return "catalog" }
func (c *CatalogCommand) Description() string { return "Lists filters, group-bys and measures" }

func (c *CatalogCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	format := fs.String("format", "", "output format: table or json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	catalog := query.NewCatalog(database.TablesFor(config.GetConfig()))
	desc := catalog.Describe()

	if resolveFormat(*format, term.IsTerminal(int(os.Stdout.Fd()))) == formatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(desc)
	}
	return writeCatalog(os.Stdout, desc)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

// Name returns the command name
func (c *StatusCommand) Name() string {
	return "status"
}

// Description returns the command description
func (c *StatusCommand) Description() string {
	return "Shows database connectivity and row counts"
}

// Execute implements the status command
func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()
	tables := app.DBManager.Tables()

	log.Println("System Status:")
	log.Println("- Database: Connected")

	for _, logical := range []string{schema.Visitors, schema.Sessions, schema.Views, schema.Resources} {
		name := tables.Name(logical)
		if !db.Migrator().HasTable(name) {
			log.Printf("- %s: missing", name)
			continue
		}
		var count int64
		if err := db.WithContext(ctx).Table(name).Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		log.Printf("- %s: %d rows", name, count)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

// Name returns the command name
func (c *HelpCommand) Name() string {
	return "help"
}

// Description returns the command description
func (c *HelpCommand) Description() string {
	return "Shows usage information"
}

// Execute implements the help command
func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: wsctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
