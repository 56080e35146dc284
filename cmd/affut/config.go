package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/affut/checkout"
)

// Config is the affut.yaml session configuration.
type Config struct {
	Store struct {
		// URL is the storefront origin, e.g. https://shop.example.com.
		URL string `yaml:"url"`
		// ID selects the checkout initiation strategy; empty uses the
		// default GET strategy.
		ID string `yaml:"id"`
	} `yaml:"store"`

	Target struct {
		Keywords []string `yaml:"keywords"`
		Sizes    []string `yaml:"sizes"`
	} `yaml:"target"`

	Poll struct {
		Base         time.Duration `yaml:"base"`
		Low          time.Duration `yaml:"low"`
		MinuteWindow time.Duration `yaml:"minute_window"`
		FeedPath     string        `yaml:"feed_path"`
		FeedTimeout  time.Duration `yaml:"feed_timeout"`
		UserAgent    string        `yaml:"user_agent"`
	} `yaml:"poll"`

	Checkout struct {
		SettleDelay    time.Duration  `yaml:"settle_delay"`
		CheckpointWait time.Duration  `yaml:"checkpoint_wait"`
		CheckpointPoll time.Duration  `yaml:"checkpoint_poll"`
		GuardMax       int            `yaml:"guard_max"`
		Paths          checkout.Paths `yaml:"paths"`
	} `yaml:"checkout"`

	Solver struct {
		// Mode is "stdio" (solver requests and responses as JSON lines on
		// stdout/stdin, for an attached solver app) or "http" (POST each
		// request to Endpoint).
		Mode     string        `yaml:"mode"`
		Endpoint string        `yaml:"endpoint"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"solver"`
}

// LoadConfig reads and validates a YAML session configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Solver.Mode == "" {
		c.Solver.Mode = "stdio"
	}
	if c.Solver.Timeout <= 0 {
		c.Solver.Timeout = 90 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("config: store.url is required")
	}
	if len(c.Target.Keywords) == 0 {
		return fmt.Errorf("config: target.keywords is required")
	}
	switch c.Solver.Mode {
	case "stdio":
	case "http":
		if c.Solver.Endpoint == "" {
			return fmt.Errorf("config: solver.endpoint is required in http mode")
		}
	default:
		return fmt.Errorf("config: unknown solver.mode %q", c.Solver.Mode)
	}
	return nil
}
