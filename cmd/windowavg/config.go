package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/window-average-service/pkg/queue"
	"github.com/ava-labs/window-average-service/pkg/source"
)

// Config holds all configuration for the windowavg application
type Config struct {
	// Application settings
	Verbose    bool
	ListenAddr string
	MaxPending int64

	// Window settings
	WindowSize  int
	Deadline    time.Duration
	LatencyWarn time.Duration

	// Source settings
	Gateway source.Config

	// Outcome stream settings
	Kafka queue.Config

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Instance      string
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// Validate checks settings that no constructor checks on its own.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("invalid listen address: must not be empty")
	}
	if c.MaxPending <= 0 {
		return fmt.Errorf("invalid max pending: must be greater than 0, got %d", c.MaxPending)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.Gateway.Kind == source.KindHTTP && c.Gateway.BaseURL == "" {
		return errors.New("invalid base url: required for the http gateway")
	}
	if err := c.Kafka.Validate(); err != nil {
		return err
	}
	return nil
}

// buildConfig builds a Config from CLI context flags. Kafka settings not
// exposed as flags are read from the environment.
func buildConfig(c *cli.Context) (*Config, error) {
	kafkaCfg, err := queue.LoadConfig()
	if err != nil {
		return nil, err
	}
	kafkaCfg.Brokers = c.String("kafka-brokers")
	kafkaCfg.Topic = c.String("kafka-topic")
	kafkaCfg.EnableLogs = c.Bool("kafka-enable-logs")

	deadline := c.Duration("deadline")
	latencyWarn := c.Duration("latency-warn")
	if !c.IsSet("latency-warn") {
		latencyWarn = deadline
	}

	cfg := &Config{
		Verbose:     c.Bool("verbose"),
		ListenAddr:  c.String("listen-addr"),
		MaxPending:  c.Int64("max-pending"),
		WindowSize:  c.Int("window-size"),
		Deadline:    deadline,
		LatencyWarn: latencyWarn,
		Gateway: source.Config{
			Kind:        source.Kind(c.String("gateway")),
			BaseURL:     c.String("base-url"),
			Token:       c.String("token"),
			MinDelay:    c.Duration("sim-min-delay"),
			MaxDelay:    c.Duration("sim-max-delay"),
			FailureRate: c.Float64("sim-failure-rate"),
			Seed:        c.Int64("sim-seed"),
		},
		Kafka:         kafkaCfg,
		MetricsHost:   c.String("metrics-host"),
		MetricsPort:   c.Int("metrics-port"),
		Instance:      c.String("instance"),
		Environment:   c.String("environment"),
		Region:        c.String("region"),
		CloudProvider: c.String("cloud-provider"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
