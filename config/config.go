// Package config loads the proxy listing configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// AliasSites is the directory scanned for Alias directives listed at the root.
	AliasSites string `env:"PROXYLISTING_ALIAS_SITES" envDefault:"/etc/apache2/sites-enabled/"`
	// ProxySites is the directory scanned for Location sections of the x-ipstudio and x-nmos namespaces.
	ProxySites string `env:"PROXYLISTING_PROXY_SITES" envDefault:"/etc/apache2/sites-available/"`
	// Listen is the host:port the HTTP listener binds to.
	Listen string `env:"PROXYLISTING_LISTEN" envDefault:"127.0.0.1:12344"`

	LogLevel  string `env:"PROXYLISTING_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"PROXYLISTING_LOG_FORMAT" envDefault:"text"`

	// Metrics exposes Prometheus metrics at /metrics.
	Metrics bool `env:"PROXYLISTING_METRICS" envDefault:"true"`
	// RateLimit is the number of requests per second served. Zero disables the limit.
	RateLimit float64 `env:"PROXYLISTING_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"PROXYLISTING_RATE_BURST" envDefault:"10"`

	PollInterval    time.Duration `env:"PROXYLISTING_POLL_INTERVAL"    envDefault:"100ms"`
	ShutdownTimeout time.Duration `env:"PROXYLISTING_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// Parse builds the configuration from the given environment variables.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads envFiles into the process environment and parses it.
// Variables already set take precedence over the files. Missing files are ignored;
// without envFiles, .env in the working directory is tried.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %q: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
