package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	Workflow WorkflowConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	URL             string // postgres DSN
	Path            string // sqlite file
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
	SlowThreshold   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// WorkflowConfig controls the kanban status endpoints.
type WorkflowConfig struct {
	// QuoteWonPolicy decides what a drag to "won" does: "reject" or "allow".
	QuoteWonPolicy string
}

const (
	QuoteWonReject = "reject"
	QuoteWonAllow  = "allow"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "smb-crm")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.port", "3000")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "crm.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "200ms")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("workflow.quote_won_policy", QuoteWonReject)
}

// Load reads configuration. Priority (highest to lowest):
// 1. Environment variables with CRM_ prefix (e.g. CRM_DATABASE_DRIVER)
// 2. the legacy DATABASE_URL / PORT / APP_ENV variables
// 3. config.yaml in the working directory
// 4. Built-in defaults
// A .env file, when present, is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.url", "CRM_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("app.port", "CRM_APP_PORT", "PORT")
	_ = v.BindEnv("app.env", "CRM_APP_ENV", "APP_ENV")

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			URL:             v.GetString("database.url"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Workflow: WorkflowConfig{
			QuoteWonPolicy: strings.ToLower(v.GetString("workflow.quote_won_policy")),
		},
	}
}

// Validate checks the combinations Load cannot default away.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for the postgres driver (set DATABASE_URL)")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Workflow.QuoteWonPolicy {
	case QuoteWonReject, QuoteWonAllow:
	default:
		return fmt.Errorf("workflow.quote_won_policy must be %q or %q", QuoteWonReject, QuoteWonAllow)
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }
