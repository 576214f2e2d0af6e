// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, listen addresses, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	JournalPath string `yaml:"journal_path"`
}

// Broker describes one backend variant: execution mode, endpoints, and the
// exchange constraints enforced before dispatch. Credentials are never read
// from YAML; they are overlaid from the environment by ApplyEnv.
type Broker struct {
	Enabled           bool     `yaml:"enabled"`
	Testnet           bool     `yaml:"testnet"`
	BaseURL           string   `yaml:"base_url"`
	MinNotional       float64  `yaml:"min_notional"`
	QuantityPrecision int32    `yaml:"quantity_precision"`
	QuoteSuffixes     []string `yaml:"quote_suffixes"`
	AllowedSymbols    []string `yaml:"allowed_symbols"`
	SquareOff         bool     `yaml:"square_off"`

	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// Feed configures the optional websocket reference-price cache.
type Feed struct {
	Enabled   bool     `yaml:"enabled"`
	Symbols   []string `yaml:"symbols"`
	MaxAgeSec int      `yaml:"max_age_sec"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App     App    `yaml:"app"`
	Binance Broker `yaml:"binance"`
	Paper   Broker `yaml:"paper"`
	Equity  Broker `yaml:"equity"`
	Feed    Feed   `yaml:"feed"`
}

const (
	defaultMinNotional = 10
	defaultPrecision   = 8
)

// Load reads a YAML file from disk and hydrates a Config struct with
// exchange-constraint defaults applied.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	for _, b := range []*Broker{&c.Binance, &c.Paper, &c.Equity} {
		if b.MinNotional <= 0 {
			b.MinNotional = defaultMinNotional
		}
		if b.QuantityPrecision <= 0 {
			b.QuantityPrecision = defaultPrecision
		}
	}
	if len(c.Binance.QuoteSuffixes) == 0 {
		c.Binance.QuoteSuffixes = []string{"USDT", "USDC", "BUSD"}
	}
	if len(c.Paper.QuoteSuffixes) == 0 {
		c.Paper.QuoteSuffixes = c.Binance.QuoteSuffixes
	}
	if c.Feed.MaxAgeSec <= 0 {
		c.Feed.MaxAgeSec = 10
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.ListenAddr == "" {
		c.App.ListenAddr = ":8080"
	}
}

// ApplyEnv overlays credential pairs from the process environment. Keys stay
// out of the YAML file so a committed config can never leak them.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("FLATTRADE_USER_ID"); v != "" {
		c.Equity.APIKey = v
	}
	if v := os.Getenv("FLATTRADE_API_KEY"); v != "" {
		c.Equity.APISecret = v
	}
	if v := os.Getenv("BINANCE_TESTNET"); v == "true" || v == "1" {
		c.Binance.Testnet = true
	}
}

// Save persists a Config struct to disk as YAML. Credential fields are
// excluded by their yaml tags.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
