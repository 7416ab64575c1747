package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ListenConfig holds the daemon's HTTP listener settings.
type ListenConfig struct {
	Listen string `yaml:"listen,omitempty"` // TCP address (default: ":6789")
}

// PollerConfig holds the trigger evaluation loop settings.
type PollerConfig struct {
	Interval string `yaml:"interval,omitempty"` // poll cadence, e.g. "10s", "1m"
}

// SQLiteConfig holds settings for the SQLite-backed store.
type SQLiteConfig struct {
	Path       string `yaml:"path,omitempty"`       // database file path
	Migrations string `yaml:"migrations,omitempty"` // migrations directory
}

// MongoConfig holds settings for the MongoDB-backed store.
type MongoConfig struct {
	URI      string `yaml:"uri,omitempty"`      // connection string
	Database string `yaml:"database,omitempty"` // database name
}

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	Driver string       `yaml:"driver,omitempty"` // "sqlite" or "mongo"
	SQLite SQLiteConfig `yaml:"sqlite,omitempty"`
	Mongo  MongoConfig  `yaml:"mongo,omitempty"`
}

// DeviceHTTPConfig configures the REST device-state source.
type DeviceHTTPConfig struct {
	BaseURL  string `yaml:"base_url,omitempty"`  // e.g. "https://api.smartthings.com"
	TokenEnv string `yaml:"token_env,omitempty"` // env var holding the bearer token
	Timeout  int    `yaml:"timeout,omitempty"`   // per-request timeout in seconds
}

// DeviceMongoConfig configures the Mongo device-state source (demo/test harness).
// URI and Database fall back to the store's Mongo settings when empty.
type DeviceMongoConfig struct {
	URI        string `yaml:"uri,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"` // default: "device_states"
}

// DevicesConfig selects and configures the device-state source.
type DevicesConfig struct {
	Source string            `yaml:"source,omitempty"` // "http" or "mongo"
	HTTP   DeviceHTTPConfig  `yaml:"http,omitempty"`
	Mongo  DeviceMongoConfig `yaml:"mongo,omitempty"`
}

// OllamaConfig holds settings for the Ollama oracle backend.
type OllamaConfig struct {
	Host    string `yaml:"host,omitempty"`    // default: "http://localhost:11434"
	Timeout int    `yaml:"timeout,omitempty"` // request timeout in seconds
}

// OpenAIConfig holds settings for the OpenAI oracle backend.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"` // default: official API
	Organization string `yaml:"organization,omitempty"`
}

// AnthropicConfig holds settings for the Anthropic oracle backend.
// Anthropic has no embeddings endpoint, so it can only serve summaries;
// embeddings fall back to Ollama when it is selected.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
}

// OracleConfig selects and configures the embedding/summarization oracle.
type OracleConfig struct {
	Provider     string          `yaml:"provider,omitempty"`      // "ollama", "openai", or "anthropic"
	EmbedModel   string          `yaml:"embed_model,omitempty"`   // embedding model name
	SummaryModel string          `yaml:"summary_model,omitempty"` // summarization model name
	Ollama       OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI       OpenAIConfig    `yaml:"openai,omitempty"`
	Anthropic    AnthropicConfig `yaml:"anthropic,omitempty"`
}

// MCPForwardConfig configures the optional MCP action forwarder. When Command
// is set, fired action payloads are handed to the named tool on a stdio MCP
// server (e.g. a device-control bridge).
type MCPForwardConfig struct {
	Command string   `yaml:"command,omitempty"` // server launch command
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`
	Tool    string   `yaml:"tool,omitempty"` // tool invoked with the action payload
}

// DispatchConfig configures what happens when a trigger fires.
type DispatchConfig struct {
	QueueSize int              `yaml:"queue_size,omitempty"` // fired-action queue capacity
	Notify    bool             `yaml:"notify,omitempty"`     // desktop notification on fire
	MCP       MCPForwardConfig `yaml:"mcp,omitempty"`
}

// ProfilesConfig configures the scheduled profile refresh job.
type ProfilesConfig struct {
	// RefreshSchedule is a cron spec (e.g. "0 30 3 * * *") or a plain Go
	// duration (e.g. "12h"). Empty disables the job.
	RefreshSchedule string `yaml:"refresh_schedule,omitempty"`
}

// ServerConfig is the full daemon configuration.
type ServerConfig struct {
	Server   ListenConfig   `yaml:"server,omitempty"`
	Poller   PollerConfig   `yaml:"poller,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Devices  DevicesConfig  `yaml:"devices,omitempty"`
	Oracle   OracleConfig   `yaml:"oracle,omitempty"`
	Dispatch DispatchConfig `yaml:"dispatch,omitempty"`
	Profiles ProfilesConfig `yaml:"profiles,omitempty"`
}

// DaemonConfig holds client-side connection settings.
type DaemonConfig struct {
	Addr    string `yaml:"addr,omitempty"`    // daemon base URL (default: "http://localhost:6789")
	Timeout int    `yaml:"timeout,omitempty"` // request timeout in seconds
}

// ClientConfig is the hearth CLI configuration.
type ClientConfig struct {
	Daemon        DaemonConfig `yaml:"daemon,omitempty"`
	WatchInterval int          `yaml:"watch_interval,omitempty"` // dashboard refresh in seconds
}

// DefaultServerConfig returns the daemon defaults applied under any loaded file.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Server: ListenConfig{Listen: ":6789"},
		Poller: PollerConfig{Interval: "10s"},
		Store: StoreConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:       "~/.hearth/hearth.db",
				Migrations: "migrations",
			},
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "hearth",
			},
		},
		Devices: DevicesConfig{
			Source: "http",
			HTTP: DeviceHTTPConfig{
				TokenEnv: "HEARTH_DEVICES_TOKEN",
				Timeout:  10,
			},
			Mongo: DeviceMongoConfig{Collection: "device_states"},
		},
		Oracle: OracleConfig{
			Provider:     "ollama",
			EmbedModel:   "nomic-embed-text",
			SummaryModel: "llama3.2:3b",
			Ollama: OllamaConfig{
				Host:    "http://localhost:11434",
				Timeout: 60,
			},
			OpenAI: OpenAIConfig{BaseURL: "https://api.openai.com/v1"},
		},
		Dispatch: DispatchConfig{QueueSize: 256},
	}
}

// GetServerConfigPath returns the default daemon config file path.
// Can be overridden via the HEARTH_CONFIG environment variable.
func GetServerConfigPath() string {
	if envPath := os.Getenv("HEARTH_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.hearth/hearth.yaml"
	}
	return filepath.Join(homeDir, ".hearth", "hearth.yaml")
}

// GetClientConfigPath returns the default CLI config file path.
// Can be overridden via the HEARTH_CLIENT_CONFIG environment variable.
func GetClientConfigPath() string {
	if envPath := os.Getenv("HEARTH_CLIENT_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.hearth/cli.yaml"
	}
	return filepath.Join(homeDir, ".hearth", "cli.yaml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// LoadServerConfig loads the daemon configuration: defaults, overridden by the
// YAML file at path when it exists.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		// No config file, defaults are enough to run.
		return &cfg, nil
	}

	raw, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var fileCfg ServerConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
	}

	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return &cfg, nil
}

// LoadClientConfig loads the CLI configuration, returning defaults when the
// file does not exist.
func LoadClientConfig(path string) (*ClientConfig, error) {
	defaults := ClientConfig{
		Daemon: DaemonConfig{
			Addr:    "http://localhost:6789",
			Timeout: 30,
		},
		WatchInterval: 5,
	}

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return &defaults, nil
	}

	raw, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read client config file %q: %w", expandedPath, err)
	}

	var fileCfg ClientConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}

	if err := mergo.Merge(&defaults, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge client config: %w", err)
	}

	return &defaults, nil
}

// SaveServerConfig writes the daemon configuration to the given path,
// creating parent directories as needed.
func SaveServerConfig(cfg *ServerConfig, path string) error {
	expandedPath := expandPath(path)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
