package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/kanufit/internal/insights"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Account   AccountConfig   `yaml:"account"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Session   SessionConfig   `yaml:"session"`
	Insights  InsightsConfig  `yaml:"insights"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// AccountConfig fixes the document namespace. There is no sign-in; every
// document lives under artifacts/{app_id}/users/{user_id}.
type AccountConfig struct {
	AppID  string `yaml:"app_id"`
	UserID string `yaml:"user_id"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type SessionConfig struct {
	// ReplaceActive lets starting a session discard an unfinished one.
	ReplaceActive bool `yaml:"replace_active"`
	// AtomicCommit writes a finished session in one transaction.
	AtomicCommit bool `yaml:"atomic_commit"`
}

type InsightsConfig struct {
	WindowDays int    `yaml:"window_days"`
	Months     int    `yaml:"months"`
	Timezone   string `yaml:"timezone"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Location resolves the calendar used for monthly grouping. Empty means the
// process's local zone.
func (i InsightsConfig) Location() (*time.Location, error) {
	if i.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(i.Timezone)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix KANUFIT_ and underscore-separated paths:
//
//	KANUFIT_SERVER_HOST, KANUFIT_SERVER_PORT,
//	KANUFIT_STORAGE_DRIVER, KANUFIT_SQLITE_PATH,
//	KANUFIT_DB_HOST, KANUFIT_DB_PORT, KANUFIT_DB_NAME,
//	KANUFIT_DB_USER, KANUFIT_DB_PASSWORD, KANUFIT_DB_SSLMODE,
//	KANUFIT_AUTH_API_KEY, KANUFIT_ACCOUNT_APP_ID, KANUFIT_ACCOUNT_USER_ID,
//	KANUFIT_SESSION_REPLACE_ACTIVE, KANUFIT_SESSION_ATOMIC_COMMIT,
//	KANUFIT_TIMEZONE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"KANUFIT_SERVER_HOST":     &cfg.Server.Host,
		"KANUFIT_STORAGE_DRIVER":  &cfg.Storage.Driver,
		"KANUFIT_SQLITE_PATH":     &cfg.Storage.SQLitePath,
		"KANUFIT_DB_HOST":         &cfg.Database.Host,
		"KANUFIT_DB_NAME":         &cfg.Database.Name,
		"KANUFIT_DB_USER":         &cfg.Database.User,
		"KANUFIT_DB_PASSWORD":     &cfg.Database.Password,
		"KANUFIT_DB_SSLMODE":      &cfg.Database.SSLMode,
		"KANUFIT_AUTH_API_KEY":    &cfg.Auth.APIKey,
		"KANUFIT_ACCOUNT_APP_ID":  &cfg.Account.AppID,
		"KANUFIT_ACCOUNT_USER_ID": &cfg.Account.UserID,
		"KANUFIT_TIMEZONE":        &cfg.Insights.Timezone,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"KANUFIT_SERVER_PORT": &cfg.Server.Port,
		"KANUFIT_DB_PORT":     &cfg.Database.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	bools := map[string]*bool{
		"KANUFIT_SESSION_REPLACE_ACTIVE": &cfg.Session.ReplaceActive,
		"KANUFIT_SESSION_ATOMIC_COMMIT":  &cfg.Session.AtomicCommit,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverPostgres
	}
	if cfg.Account.AppID == "" {
		cfg.Account.AppID = "kanufit"
	}
	if cfg.Insights.WindowDays == 0 {
		cfg.Insights.WindowDays = 30
	}
	if cfg.Insights.Months == 0 {
		cfg.Insights.Months = 6
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "kanufit"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not one of postgres, sqlite, memory", c.Storage.Driver)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Account.UserID == "" {
		return fmt.Errorf("account.user_id is required")
	}
	if c.Insights.WindowDays < 0 || c.Insights.Months < 0 {
		return fmt.Errorf("insights.window_days and insights.months must be positive")
	}
	if c.Insights.WindowDays > insights.MaxWindowDays || c.Insights.Months > insights.MaxMonths {
		return fmt.Errorf("insights.window_days is limited to %d and insights.months to %d",
			insights.MaxWindowDays, insights.MaxMonths)
	}
	if _, err := c.Insights.Location(); err != nil {
		return fmt.Errorf("insights.timezone: %w", err)
	}
	return nil
}
