// Package config содержит логику чтения конфигурации панели управления подписками.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	APIBaseURL     string        `env:"API_BASE_URL"`
	APITimeout     time.Duration `env:"API_TIMEOUT"`
	PriceDebounce  time.Duration `env:"PRICE_DEBOUNCE"`
	DuplicateMeals string        `env:"DUPLICATE_MEALS"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for the action log")
	flag.StringVar(&cfg.APIBaseURL, "b", "http://localhost:5000/api/v1", "subscription management API base URL")
	flag.DurationVar(&cfg.APITimeout, "t", 10*time.Second, "subscription management API request timeout")
	flag.DurationVar(&cfg.PriceDebounce, "p", 500*time.Millisecond, "price recalculation debounce window")
	flag.StringVar(&cfg.DuplicateMeals, "m", "overwrite", "duplicate meal type policy: overwrite, error or collect")
	flag.StringVar(&cfg.SessionSecret, "s", "", "view session cookie secret")
	flag.DurationVar(&cfg.SessionTTL, "l", 30*time.Minute, "idle view session lifetime")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.APIBaseURL != "" {
		cfg.APIBaseURL = fromEnv.APIBaseURL
	}
	if fromEnv.APITimeout != 0 {
		cfg.APITimeout = fromEnv.APITimeout
	}
	if fromEnv.PriceDebounce != 0 {
		cfg.PriceDebounce = fromEnv.PriceDebounce
	}
	if fromEnv.DuplicateMeals != "" {
		cfg.DuplicateMeals = fromEnv.DuplicateMeals
	}
	if fromEnv.SessionSecret != "" {
		cfg.SessionSecret = fromEnv.SessionSecret
	}
	if fromEnv.SessionTTL != 0 {
		cfg.SessionTTL = fromEnv.SessionTTL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API timeout must be positive, got %s", c.APITimeout)
	}
	if c.PriceDebounce <= 0 {
		return fmt.Errorf("price debounce must be positive, got %s", c.PriceDebounce)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}
