package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the reserve daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	DataDir       string          `yaml:"data_dir"`
	Assets        []string        `yaml:"assets"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// AuthConfig lists the bearer tokens accepted by the daemon. API tokens may
// call every unprivileged operation; admin tokens additionally hold the
// authority capability for fee configuration and fee-vault withdrawal.
type AuthConfig struct {
	APITokens   []string `yaml:"api_tokens"`
	AdminTokens []string `yaml:"admin_tokens"`
}

// RateLimitConfig throttles mutating requests per client.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// TelemetryConfig controls the OpenTelemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8661",
		DataDir:       "data/reserved",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8661"
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = "data/reserved"
	}
	assets := make([]string, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		if trimmed := strings.ToUpper(strings.TrimSpace(asset)); trimmed != "" {
			assets = append(assets, trimmed)
		}
	}
	cfg.Assets = assets
	cfg.Auth.normalize()
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 50
	}
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.APITokens = trimTokens(cfg.APITokens)
	cfg.AdminTokens = trimTokens(cfg.AdminTokens)
}

func (cfg AuthConfig) validate() error {
	if len(cfg.APITokens) == 0 && len(cfg.AdminTokens) == 0 {
		return fmt.Errorf("at least one api or admin token must be configured")
	}
	return nil
}

func trimTokens(tokens []string) []string {
	trimmed := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if t := strings.TrimSpace(token); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return trimmed
}
