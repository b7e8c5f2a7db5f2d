// Package config loads and validates the runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scriptbot/market"
)

// Config is the complete runtime configuration.
type Config struct {
	Exchange ExchangeConfig `json:"exchange" yaml:"exchange"`
	Defaults DefaultsConfig `json:"defaults" yaml:"defaults"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ExchangeConfig selects the exchange endpoints and credential source.
// APIKey and APISecret come from the environment or from the encrypted key
// file; the file wins when both are set.
type ExchangeConfig struct {
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	StreamURL string `json:"stream_url,omitempty" yaml:"stream_url,omitempty"`
	KeyFile   string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	APIKey    string `json:"-" yaml:"-"`
	APISecret string `json:"-" yaml:"-"`
}

// DefaultsConfig supplies fallbacks for scripts that set no header
// parameters, plus the trading knobs.
type DefaultsConfig struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Interval    string  `json:"interval" yaml:"interval"`
	TakerFee    float64 `json:"taker_fee" yaml:"taker_fee"`
	CrossMargin bool    `json:"cross_margin,omitempty" yaml:"cross_margin,omitempty"`
}

// DataConfig controls the local cache.
type DataConfig struct {
	DBPath    string `json:"db_path" yaml:"db_path"`
	DataLimit int    `json:"data_limit" yaml:"data_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console or json
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content) and overlays credentials from the environment.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadEnv pulls credentials from a .env file (if present) and the process
// environment.
func (c *Config) loadEnv() {
	_ = godotenv.Load()
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
}

// SaveToFile writes the configuration (YAML for .yaml/.yml, JSON otherwise).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for mistakes that would otherwise only
// surface mid-run.
func (c *Config) Validate() error {
	if c.Defaults.Symbol == "" {
		return fmt.Errorf("defaults.symbol is required")
	}
	if !market.Interval(c.Defaults.Interval).Valid() {
		return fmt.Errorf("defaults.interval %q is not a valid interval", c.Defaults.Interval)
	}
	if c.Defaults.TakerFee < 0 || c.Defaults.TakerFee >= 0.01 {
		return fmt.Errorf("defaults.taker_fee must be a small non-negative rate")
	}
	if c.Data.DBPath == "" {
		return fmt.Errorf("data.db_path is required")
	}
	if c.Data.DataLimit <= 0 {
		return fmt.Errorf("data.data_limit must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'console' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Symbol:   "BTCUSDT",
			Interval: string(market.Interval1h),
			TakerFee: 0.0004,
		},
		Data: DataConfig{
			DBPath:    "./scriptbot.db",
			DataLimit: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
