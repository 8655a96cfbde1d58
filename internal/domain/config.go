package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Monitor     MonitorConfig  `mapstructure:"monitor"`
	Models      ModelsConfig   `mapstructure:"models"`
	Records     RecordsConfig  `mapstructure:"records"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Notify      NotifyConfig   `mapstructure:"notify"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	MCP         MCPConfig      `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst    int           `mapstructure:"rate_burst"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// MonitorConfig controls the refresh tick
type MonitorConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	HistorySize     int           `mapstructure:"history_size"`
}

// ModelsConfig locates the pre-fit model artifacts
type ModelsConfig struct {
	Dir string `mapstructure:"dir"`
}

// RecordsConfig selects the patient record store backend
type RecordsConfig struct {
	Backend    string `mapstructure:"backend"` // "memory", "sqlite", "postgres"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig represents the live-state mirror configuration
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Key     string `mapstructure:"key"`
	Channel string `mapstructure:"channel"`
}

// NotifyConfig represents doctor notification sinks
type NotifyConfig struct {
	WebhookURL   string        `mapstructure:"webhook_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // notifications per second
	MQTTBroker   string        `mapstructure:"mqtt_broker"`
	MQTTTopic    string        `mapstructure:"mqtt_topic"`
	MQTTClientID string        `mapstructure:"mqtt_client_id"`
	MQTTUsername string        `mapstructure:"mqtt_username"`
	MQTTPassword string        `mapstructure:"mqtt_password"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	Source        string `mapstructure:"source"` // "local", "redis"
}
