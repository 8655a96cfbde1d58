// Package setup registers the MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
)

// ServerName is the key under which the monitor is registered.
const ServerName = "chronic-risk-monitor"

// BinaryName is the MCP server executable.
const BinaryName = "mcp-server"

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
// Keys other than mcpServers are preserved on save.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for registering the server.
type Options struct {
	ConfigPath string // client config file; platform default when empty
	BinaryPath string // mcp-server binary; searched when empty
	ModelsDir  string
	Source     string // "local" or "redis"
	RedisURL   string
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing configuration. A missing file
// yields an empty one.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	config := &ClaudeDesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return config, nil
}

// MarshalJSON merges the server map back into the preserved keys.
func (c *ClaudeDesktopConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers
	return json.Marshal(out)
}

// SaveClaudeDesktopConfig saves the configuration to the config file.
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ServerEntry builds the client entry for the monitor. Settings travel as
// RISK_MONITOR_* environment overrides.
func ServerEntry(opts Options) (MCPServerConfig, error) {
	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		var err error
		if binaryPath, err = findBinary(); err != nil {
			return MCPServerConfig{}, fmt.Errorf("could not find server binary: %w", err)
		}
	}

	env := map[string]string{
		// stdout carries the protocol; keep logs terse on stderr
		"RISK_MONITOR_LOGGING_LEVEL": "warn",
	}
	if opts.ModelsDir != "" {
		dir, err := filepath.Abs(opts.ModelsDir)
		if err != nil {
			return MCPServerConfig{}, err
		}
		env["RISK_MONITOR_MODELS_DIR"] = dir
	}
	switch opts.Source {
	case "", "local":
	case "redis":
		if opts.RedisURL == "" {
			return MCPServerConfig{}, fmt.Errorf("redis source requires a redis url")
		}
		env["RISK_MONITOR_MCP_SOURCE"] = "redis"
		env["RISK_MONITOR_REDIS_ENABLED"] = "true"
		env["RISK_MONITOR_REDIS_URL"] = opts.RedisURL
	default:
		return MCPServerConfig{}, fmt.Errorf("unknown mcp source: %s", opts.Source)
	}

	return MCPServerConfig{Command: binaryPath, Env: env}, nil
}

// Register adds or updates the monitor in the client config and returns the
// path written.
func Register(opts Options) (string, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		var err error
		if configPath, err = GetClaudeDesktopConfigPath(); err != nil {
			return "", err
		}
	}

	entry, err := ServerEntry(opts)
	if err != nil {
		return "", err
	}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return "", err
	}
	config.MCPServers[ServerName] = entry

	if err := SaveClaudeDesktopConfig(configPath, config); err != nil {
		return "", err
	}
	return configPath, nil
}

// Servers lists the names registered in a config, sorted.
func (c *ClaudeDesktopConfig) Servers() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(os.Getenv("HOME"), ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", BinaryName)
}
