// Package config loads run settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/money-model/internal/engine"
	"github.com/talgya/money-model/internal/experiment"
)

// Config holds everything a run needs.
type Config struct {
	Agents      int    `yaml:"agents"`
	Steps       int    `yaml:"steps"`
	Trials      int    `yaml:"trials"`
	Seed        *int64 `yaml:"seed,omitempty"` // nil = draw a fresh seed
	ExcludeSelf bool   `yaml:"exclude_self"`
	Workers     int    `yaml:"workers"`

	DBPath string `yaml:"db_path"` // Empty = results not stored
	Export string `yaml:"export"`  // Path for a zstd sample export

	API API `yaml:"api"`

	RandomOrgKey string `yaml:"-"` // Env only
}

// API configures the HTTP server.
type API struct {
	Port          int  `yaml:"port"`
	RateLimitHour int  `yaml:"rate_limit_hour"`
	TrustProxy    bool `yaml:"trust_proxy"` // Rate limit on X-Forwarded-For

	AdminKey string `yaml:"-"` // Env only
}

// Default mirrors the classic setup: 100 trials of 10 agents for 10 steps.
func Default() Config {
	return Config{
		Agents: 10,
		Steps:  10,
		Trials: 100,
		API: API{
			Port:          8080,
			RateLimitHour: 60,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MONEYSIM_* variables. A MONEYSIM_SEED or
// MONEYSIM_TRUST_PROXY that does not parse is an error.
func (c *Config) ApplyEnv() error {
	c.Agents = envIntOrDefault("MONEYSIM_AGENTS", c.Agents)
	c.Steps = envIntOrDefault("MONEYSIM_STEPS", c.Steps)
	c.Trials = envIntOrDefault("MONEYSIM_TRIALS", c.Trials)
	c.Workers = envIntOrDefault("MONEYSIM_WORKERS", c.Workers)
	c.DBPath = envOrDefault("MONEYSIM_DB", c.DBPath)
	c.API.Port = envIntOrDefault("MONEYSIM_PORT", c.API.Port)
	c.API.AdminKey = os.Getenv("MONEYSIM_ADMIN_KEY")
	c.RandomOrgKey = os.Getenv("RANDOM_ORG_API_KEY")

	if v := os.Getenv("MONEYSIM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MONEYSIM_TRUST_PROXY=%q: %w", v, engine.ErrInvalidParameter)
		}
		c.API.TrustProxy = trust
	}

	if v := os.Getenv("MONEYSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MONEYSIM_SEED=%q: %w", v, engine.ErrInvalidParameter)
		}
		c.Seed = &n
	}
	return nil
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if err := c.Params(0).Validate(); err != nil {
		return err
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api port %d out of range: %w", c.API.Port, engine.ErrInvalidParameter)
	}
	return nil
}

// Params converts the config into experiment parameters. seed is used when
// the config does not pin one.
func (c Config) Params(seed int64) experiment.Params {
	if c.Seed != nil {
		seed = *c.Seed
	}
	return experiment.Params{
		Trials:      c.Trials,
		Agents:      c.Agents,
		Steps:       c.Steps,
		Seed:        seed,
		ExcludeSelf: c.ExcludeSelf,
		Workers:     c.Workers,
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
