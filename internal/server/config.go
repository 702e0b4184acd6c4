package server

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/zeusnet/internal/core/game"
	"github.com/zeusync/zeusnet/internal/core/network"
	"github.com/zeusync/zeusnet/internal/core/session"
)

// EnvGameDir overrides Config.GameDir.
const EnvGameDir = "ZEUSNET_GAME_DIR"

// Config holds server configuration
type Config struct {
	// Network settings
	Host        string                  `yaml:"host"`
	Port        uint16                  `yaml:"port"`
	Family      string                  `yaml:"family"`
	Multiplexer network.MultiplexerKind `yaml:"multiplexer"`
	// PollTimeout bounds every multiplexer wait and paces the liveness
	// check.
	PollTimeout time.Duration `yaml:"pollTimeout"`
	BatchSize   int           `yaml:"batchSize"`

	// Session settings
	ClientTimeout time.Duration `yaml:"clientTimeout"`

	// Game loop settings
	GameDir           string        `yaml:"gameDir"`
	MaxPacketsPerTick int           `yaml:"maxPacketsPerTick"`
	MinTickInterval   time.Duration `yaml:"minTickInterval"`

	// Observability. An empty MetricsAddr disables the HTTP endpoint.
	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`

	// Console reads admin commands from standard input.
	Console bool `yaml:"console"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              8081,
		Family:            network.IPv4.String(),
		Multiplexer:       network.MultiplexerAuto,
		PollTimeout:       network.DefaultWaitTimeout,
		BatchSize:         32,
		ClientTimeout:     session.DefaultTimeout,
		GameDir:           "Games",
		MaxPacketsPerTick: game.DefaultMaxPacketsPerTick,
		MinTickInterval:   game.DefaultMinTickInterval,
		MetricsAddr:       "127.0.0.1:9091",
		LogLevel:          "info",
	}
}

// LoadConfig reads a YAML file over the defaults, then applies the
// environment. An empty path reads only the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv applies ZEUSNET_GAME_DIR when it is set.
func (c *Config) ApplyEnv() {
	if dir, ok := os.LookupEnv(EnvGameDir); ok && dir != "" {
		c.GameDir = dir
	}
}

func (c *Config) Validate() error {
	var errs error
	if _, err := network.ParseIPFamily(c.Family); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := network.ParseMultiplexerKind(string(c.Multiplexer)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.PollTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("pollTimeout %s must be positive", c.PollTimeout))
	}
	if c.BatchSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("batchSize %d is below 1", c.BatchSize))
	}
	if c.ClientTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("clientTimeout %s must be positive", c.ClientTimeout))
	}
	if c.GameDir == "" {
		errs = multierr.Append(errs, game.ErrNoGameDir)
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}
