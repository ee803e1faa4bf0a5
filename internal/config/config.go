// Package config defines the configuration model shared by the CLI and the
// MCP server. Values come from an optional YAML file, then environment
// fallbacks, then command-line flags, each layer overriding the previous one.
//
// Example file:
//
//	site: www.dallasopendata.com
//	app_token: abc123
//	database_url: postgresql://loader@localhost/opendata
//	page_size: 5000
//	http:
//	  timeout: 2m
//	  max_retries: 3
//	metrics:
//	  backend: prometheus
//	  pushgateway_url: http://pushgateway:9091
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"socrata2sql/internal/loader"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvAppToken       = "SOCRATA_APP_TOKEN"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDogStatsDAddr  = "DOGSTATSD_ADDR"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsDatadog    = "datadog"
)

// Config is the full runtime configuration.
type Config struct {
	// Site is the portal domain, e.g. www.dallasopendata.com.
	Site string `yaml:"site"`
	// AppToken is sent as X-App-Token; optional.
	AppToken string `yaml:"app_token"`
	// DatabaseURL selects the destination; empty means a SQLite file named
	// after the dataset.
	DatabaseURL string `yaml:"database_url"`
	// Table overrides the destination table name.
	Table string `yaml:"table"`
	// PageSize is the number of rows fetched and inserted per page.
	PageSize int `yaml:"page_size"`
	// SRID for geometry columns.
	SRID     int        `yaml:"srid"`
	LogLevel string     `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	Metrics  Metrics    `yaml:"metrics"`
}

// HTTPConfig tunes portal requests.
type HTTPConfig struct {
	// Timeout bounds each request; 0 disables the client-side timeout.
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Metrics selects and configures the metrics backend.
type Metrics struct {
	Backend        string `yaml:"backend"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	DogStatsDAddr  string `yaml:"dogstatsd_addr"`
	// Namespace prefixes DogStatsD metric names.
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		PageSize: loader.DefaultPageSize,
		SRID:     4326,
		LogLevel: "info",
		HTTP:     HTTPConfig{MaxRetries: 3},
		Metrics:  Metrics{Backend: MetricsNone},
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected so typos
// surface instead of being ignored.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over Default. An empty document yields Default.
func Decode(r io.Reader) (Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv fills unset fields from the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setIfEmpty := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}
	setIfEmpty(&c.AppToken, EnvAppToken)
	setIfEmpty(&c.DatabaseURL, EnvDatabaseURL)
	setIfEmpty(&c.Metrics.PushgatewayURL, EnvPushgatewayURL)
	setIfEmpty(&c.Metrics.DogStatsDAddr, EnvDogStatsDAddr)
	if v := getenv(EnvMetricsBackend); v != "" && (c.Metrics.Backend == "" || c.Metrics.Backend == MetricsNone) {
		c.Metrics.Backend = v
	}
}
