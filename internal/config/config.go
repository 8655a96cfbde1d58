package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chronic-risk-monitor/internal/domain"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// RISK_MONITOR_MONITOR_REFRESH_INTERVAL=5s.
const EnvPrefix = "RISK_MONITOR"

// Manager loads the monitor configuration using Viper
type Manager struct {
	v       *viper.Viper
	envFile string
	config  *domain.Config
}

// Option customizes a Manager before the first load.
type Option func(*Manager)

// WithConfigFile reads configuration from an explicit file instead of the
// search paths.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.v.SetConfigFile(path)
	}
}

// WithEnvFile loads a dotenv file other than ./.env.
func WithEnvFile(path string) Option {
	return func(m *Manager) {
		m.envFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{v: viper.New(), envFile: ".env"}
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")
	m.v.AddConfigPath(".")
	m.v.AddConfigPath("./config")
	m.v.AddConfigPath("/etc/chronic-risk-monitor/")

	for _, opt := range opts {
		opt(m)
	}

	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from .env, the config file and the environment
func (m *Manager) loadConfig() error {
	// .env values never override variables already set in the environment
	if err := godotenv.Load(m.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading env file %s: %w", m.envFile, err)
	}

	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Monitor defaults; the dashboards refreshed every 20 seconds
	v.SetDefault("monitor.refresh_interval", "20s")
	v.SetDefault("monitor.history_size", 50)

	v.SetDefault("models.dir", "./models")

	v.SetDefault("records.backend", "memory")
	v.SetDefault("records.sqlite_path", "./data/patients.db")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "chronic_risk")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.migrations_path", "./migrations")

	// Live-state mirror defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.key", "risk-monitor:live")
	v.SetDefault("redis.channel", "risk-monitor:ticks")

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.rate_limit", 1.0)
	v.SetDefault("notify.mqtt_broker", "")
	v.SetDefault("notify.mqtt_topic", "risk-monitor/alerts")
	v.SetDefault("notify.mqtt_client_id", "chronic-risk-monitor")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("mcp.server_name", "chronic-risk-monitor")
	v.SetDefault("mcp.server_version", "v0.1.0")
	v.SetDefault("mcp.source", "local")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	// A zero rate limit disables request limiting.
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("server rate limit must not be negative")
	}

	if config.Monitor.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", config.Monitor.RefreshInterval)
	}
	if config.Monitor.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", config.Monitor.HistorySize)
	}

	if config.Models.Dir == "" {
		return fmt.Errorf("models directory is required")
	}

	switch config.Records.Backend {
	case "memory":
	case "sqlite":
		if config.Records.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite records backend")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("unknown records backend: %s", config.Records.Backend)
	}

	if config.Redis.Enabled && config.Redis.URL == "" {
		return fmt.Errorf("Redis URL is required when the live-state mirror is enabled")
	}

	switch config.MCP.Source {
	case "local":
	case "redis":
		if !config.Redis.Enabled {
			return fmt.Errorf("mcp source redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown mcp source: %s", config.MCP.Source)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
