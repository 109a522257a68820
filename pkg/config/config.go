// Package config loads and validates the application configuration.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr         string `yaml:"addr" validate:"required"`
	ReadTimeout  int    `yaml:"read_timeout_sec" validate:"gte=0"`
	WriteTimeout int    `yaml:"write_timeout_sec" validate:"gte=0"`
	CORSOrigin   string `yaml:"cors_origin"`
}

// RankConfig configures the centrality iteration.
type RankConfig struct {
	Damping       float64 `yaml:"damping" validate:"gt=0,lt=1"`
	Epsilon       float64 `yaml:"epsilon" validate:"gt=0"`
	MaxIterations int     `yaml:"max_iterations" validate:"gt=0"`
}

// RoutingConfig configures query behavior.
type RoutingConfig struct {
	DefaultAlpha         float64 `yaml:"default_alpha" validate:"gte=0,lte=1"`
	QueryTimeout         int     `yaml:"query_timeout_sec" validate:"gt=0"`
	MaxConcurrentQueries int     `yaml:"max_concurrent_queries" validate:"gte=0"`
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Rank    RankConfig    `yaml:"rank"`
	Routing RoutingConfig `yaml:"routing"`
	DBPath  string        `yaml:"db_path"`
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  5,
			WriteTimeout: 10,
		},
		Rank: RankConfig{
			Damping:       0.85,
			Epsilon:       1e-6,
			MaxIterations: 100,
		},
		Routing: RoutingConfig{
			DefaultAlpha:         0.7,
			QueryTimeout:         5,
			MaxConcurrentQueries: 16,
		},
		DBPath: "network.db",
	}
}

// Load reads a YAML configuration file, fills unset fields with defaults,
// and validates the result.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's field constraints.
func (c AppConfig) Validate() error {
	v := validator.New()
	return v.Struct(c)
}

// QueryTimeoutDuration returns the per-query deadline.
func (c RoutingConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(c.QueryTimeout) * time.Second
}
