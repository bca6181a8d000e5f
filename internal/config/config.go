// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Attribution models accepted for querydefaultattribution.
const (
	FirstTouch = "first_touch"
	LastTouch  = "last_touch"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	APIKey      string   `mapstructure:"apikey"`

	SessionTimeoutSeconds      int `mapstructure:"sessiontimeoutseconds"`
	LoginSessionTimeoutSeconds int `mapstructure:"loginsessiontimeoutseconds"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`
	TablePrefix          string `mapstructure:"tableprefix"`
	HostTablePrefix      string `mapstructure:"hosttableprefix"`

	// Query engine settings
	QueryDefaultLimit       int    `mapstructure:"querydefaultlimit"`
	QueryMaxLimit           int    `mapstructure:"querymaxlimit"`
	QueryDefaultAttribution string `mapstructure:"querydefaultattribution"`
	QueryTimezone           string `mapstructure:"querytimezone"`
	QueryTimeoutSeconds     int    `mapstructure:"querytimeoutseconds"`
	BatchWorkers            int    `mapstructure:"batchworkers"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "webstats")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("apikey", "")
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("loginsessiontimeoutseconds", 604800)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("tableprefix", "")
		v.SetDefault("hosttableprefix", "host_")
		v.SetDefault("querydefaultlimit", 50)
		v.SetDefault("querymaxlimit", 1000)
		v.SetDefault("querydefaultattribution", FirstTouch)
		v.SetDefault("querytimezone", "UTC")
		v.SetDefault("querytimeoutseconds", 30)
		v.SetDefault("batchworkers", 4)

		v.BindEnv("appname", "WEBSTATS_APP_NAME")
		v.BindEnv("appport", "WEBSTATS_APP_PORT")
		v.BindEnv("environment", "WEBSTATS_ENV")
		v.BindEnv("loglevel", "WEBSTATS_LOG_LEVEL")
		v.BindEnv("privatekey", "WEBSTATS_PRIVATE_KEY")
		v.BindEnv("apikey", "WEBSTATS_API_KEY")
		v.BindEnv("sessiontimeoutseconds", "WEBSTATS_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("loginsessiontimeoutseconds", "WEBSTATS_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("storagepath", "WEBSTATS_STORAGE_PATH")
		v.BindEnv("publicdir", "WEBSTATS_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "WEBSTATS_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "WEBSTATS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "WEBSTATS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "WEBSTATS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "WEBSTATS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "WEBSTATS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "WEBSTATS_DB_MAX_IDLE_CONNS")
		v.BindEnv("tableprefix", "WEBSTATS_TABLE_PREFIX")
		v.BindEnv("hosttableprefix", "WEBSTATS_HOST_TABLE_PREFIX")
		v.BindEnv("querydefaultlimit", "WEBSTATS_QUERY_DEFAULT_LIMIT")
		v.BindEnv("querymaxlimit", "WEBSTATS_QUERY_MAX_LIMIT")
		v.BindEnv("querydefaultattribution", "WEBSTATS_QUERY_DEFAULT_ATTRIBUTION")
		v.BindEnv("querytimezone", "WEBSTATS_QUERY_TIMEZONE")
		v.BindEnv("querytimeoutseconds", "WEBSTATS_QUERY_TIMEOUT_SECONDS")
		v.BindEnv("batchworkers", "WEBSTATS_BATCH_WORKERS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		defaultKey := "88888888888888888888888888888888"
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique WEBSTATS_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.QueryDefaultLimit <= 0 {
		return fmt.Errorf("querydefaultlimit must be positive, got %d", c.QueryDefaultLimit)
	}
	if c.QueryMaxLimit < c.QueryDefaultLimit {
		return fmt.Errorf("querymaxlimit (%d) must be >= querydefaultlimit (%d)", c.QueryMaxLimit, c.QueryDefaultLimit)
	}

	switch c.QueryDefaultAttribution {
	case FirstTouch, LastTouch:
	default:
		return fmt.Errorf("invalid default attribution: %s", c.QueryDefaultAttribution)
	}

	if _, err := time.LoadLocation(c.QueryTimezone); err != nil {
		return fmt.Errorf("invalid query timezone %q: %w", c.QueryTimezone, err)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// QueryLocation returns the default timezone for date ranges and date buckets.
func (c *Config) QueryLocation() *time.Location {
	loc, err := time.LoadLocation(c.QueryTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QueryTimeout returns the per-request deadline applied by the HTTP layer, zero when disabled.
func (c *Config) QueryTimeout() time.Duration {
	if c.QueryTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetSessionTimeout returns the visit inactivity gap in seconds that splits
// one visitor's page views into separate sessions.
func (c *Config) GetSessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// GetLoginSessionTimeout returns the login cookie lifetime in seconds (implements cartridge.FactoryConfig interface).
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Tests use a single connection; otherwise 10 so batch queries can read concurrently.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
