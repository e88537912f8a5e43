// Package config loads process configuration from EXPCTL_* environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/jooh/expcontrol/internal/ir"
)

// Config is the configuration of one experiment session.
type Config struct {
	Subject string `env:"EXPCTL_SUBJECT,notEmpty"`
	Context string `env:"EXPCTL_CONTEXT,notEmpty"`

	// Design is the directory holding the CUE experiment design.
	Design string `env:"EXPCTL_DESIGN" envDefault:"."`

	// Order and Timing override the design's defaults when set.
	Order  []string `env:"EXPCTL_ORDER" envSeparator:","`
	Timing string   `env:"EXPCTL_TIMING"`

	DB        string   `env:"EXPCTL_DB"         envDefault:"expcontrol.db"`
	FrameRate float64  `env:"EXPCTL_FRAME_RATE" envDefault:"60"`
	AbortKey  string   `env:"EXPCTL_ABORT_KEY"  envDefault:"escape"`
	Keys      []string `env:"EXPCTL_KEYS"       envSeparator:","`
	Verbose   bool     `env:"EXPCTL_VERBOSE"`

	Pulse Pulse `envPrefix:"EXPCTL_PULSE_"`
}

// Pulse configures scanner synchronisation. An empty Key means the session
// runs on a plain clock.
type Pulse struct {
	Key       string  `env:"KEY"`
	Period    float64 `env:"PERIOD"`
	Tolerance float64 `env:"TOLERANCE" envDefault:"0.1"`
	Duration  float64 `env:"DURATION"  envDefault:"0.01"`
	Timeout   float64 `env:"TIMEOUT"   envDefault:"20"`
	Dummies   int     `env:"DUMMIES"`

	// Emulate generates the pulses in-process, for testing at the bench.
	Emulate bool `env:"EMULATE"`
}

// Enabled reports whether a pulse clock is configured.
func (p Pulse) Enabled() bool {
	return p.Key != ""
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values the environment parser cannot.
func (c Config) Validate() error {
	if !(c.FrameRate > 0) {
		return ir.NewConfigurationError("EXPCTL_FRAME_RATE must be positive, got %g", c.FrameRate)
	}
	if c.Pulse.Enabled() && !(c.Pulse.Period > 0) {
		return ir.NewConfigurationError("EXPCTL_PULSE_PERIOD must be positive when EXPCTL_PULSE_KEY is set")
	}
	if c.Pulse.Enabled() && c.Pulse.Key == c.AbortKey {
		return ir.NewConfigurationError("pulse key and abort key are both %q", c.AbortKey)
	}
	return nil
}
