// Package config holds the Nexus configuration tree. Configuration is
// loaded from nexus.yaml when present, with environment variables taking
// precedence for secrets and the listen port.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Nexus configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server  ServerConfig  `yaml:"server"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Agent   AgentConfig   `yaml:"agent"`
	Market  MarketConfig  `yaml:"market"`
	Browser BrowserConfig `yaml:"browser"`
	GitHub  GitHubConfig  `yaml:"github"`
	Render  RenderConfig  `yaml:"render"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the websocket gateway.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"` // frontend build output, served when present
}

// OracleConfig configures the Gemini client.
type OracleConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	// MaxTurns bounds oracle round-trips per inbound command.
	MaxTurns int `yaml:"max_turns"`

	// StallRetries bounds forced continuations when the oracle narrates
	// status instead of finishing.
	StallRetries int `yaml:"stall_retries"`

	// StallKeywords mark a text response as a genuine completion.
	StallKeywords []string `yaml:"stall_keywords"`

	// HistoryWindow is how many recent log rows seed the conversation.
	HistoryWindow int `yaml:"history_window"`
}

// MarketConfig configures the exchange client and signal engine.
type MarketConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Coins        []string `yaml:"coins"`
	ScanInterval string   `yaml:"scan_interval"`
	DepthLimit   int      `yaml:"depth_limit"`

	// ADXThreshold gates directional scoring; below it the meso regime is
	// treated as sideways.
	ADXThreshold float64 `yaml:"adx_threshold"`

	// StrongSignalConfidence is the broadcast-to-log cutoff for the
	// background scanner.
	StrongSignalConfidence int `yaml:"strong_signal_confidence"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	Headless      bool   `yaml:"headless"`
	ActionTimeout string `yaml:"action_timeout"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
}

// GitHubConfig configures repository tools.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	BaseURL string `yaml:"base_url"`
}

// RenderConfig configures the deployment status tool.
type RenderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Level     string `yaml:"level"` // debug, info, warn, error
	DebugMode bool   `yaml:"debug_mode"`
	Dir       string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Nexus",
		Version: "1.0.0",

		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			StaticDir: "out",
		},

		Oracle: OracleConfig{
			Model:      "gemini-2.0-flash",
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			Timeout:    "120s",
			MaxRetries: 3,
		},

		Agent: AgentConfig{
			MaxTurns:      10,
			StallRetries:  2,
			StallKeywords: []string{"完了", "終了", "done", "complete"},
			HistoryWindow: 8,
		},

		Market: MarketConfig{
			BaseURL:                "https://api.binance.com",
			Coins:                  []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
			ScanInterval:           "5m",
			DepthLimit:             50,
			ADXThreshold:           20,
			StrongSignalConfidence: 55,
		},

		Browser: BrowserConfig{
			Headless:      true,
			ActionTimeout: "25s",
			WindowWidth:   1280,
			WindowHeight:  900,
		},

		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
		},

		Render: RenderConfig{
			BaseURL: "https://api.render.com/v1",
		},

		Store: StoreConfig{
			DatabasePath: "data/nexus.db",
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
			Dir:       ".",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables are applied on top either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("NEXUS_GEMINI_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Oracle.APIKey == "" {
		c.Oracle.APIKey = key
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		c.GitHub.Token = tok
	}
	if key := os.Getenv("RENDER_API_KEY"); key != "" {
		c.Render.APIKey = key
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if path := os.Getenv("NEXUS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle API key not configured (set NEXUS_GEMINI_API_KEY or GEMINI_API_KEY)")
	}
	if c.Agent.MaxTurns < 5 || c.Agent.MaxTurns > 15 {
		return fmt.Errorf("agent.max_turns must be in [5,15], got %d", c.Agent.MaxTurns)
	}
	if c.Agent.HistoryWindow < 5 || c.Agent.HistoryWindow > 10 {
		return fmt.Errorf("agent.history_window must be in [5,10], got %d", c.Agent.HistoryWindow)
	}
	if len(c.Market.Coins) == 0 {
		return fmt.Errorf("market.coins must list at least one symbol")
	}
	return nil
}

// GetOracleTimeout returns the oracle timeout as a duration.
func (c *Config) GetOracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetScanInterval returns the market scan interval as a duration.
func (c *Config) GetScanInterval() time.Duration {
	d, err := time.ParseDuration(c.Market.ScanInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetBrowserTimeout returns the per-action browser timeout as a duration.
func (c *Config) GetBrowserTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.ActionTimeout)
	if err != nil {
		return 25 * time.Second
	}
	return d
}

// Addr returns the gateway listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
