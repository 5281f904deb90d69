package main

import (
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/window-average-service/pkg/api"
	"github.com/ava-labs/window-average-service/pkg/slidingwindow"
	"github.com/ava-labs/window-average-service/pkg/source"
)

const (
	envFileFlag = "env-file"
	envFileVar  = "ENV_FILE"
)

// runFlags returns all CLI flags for the windowavg run command
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    envFileFlag,
			Usage:   "Path to a .env file loaded before flags are read (existing variables win)",
			EnvVars: []string{envFileVar},
		},
		&cli.StringFlag{
			Name:    "listen-addr",
			Aliases: []string{"a"},
			Usage:   "Address of the HTTP API",
			EnvVars: []string{"LISTEN_ADDR"},
			Value:   ":8080",
		},
		&cli.Int64Flag{
			Name:    "max-pending",
			Usage:   "Maximum /numbers requests waiting for the window before new ones get 429",
			EnvVars: []string{"MAX_PENDING"},
			Value:   api.DefaultMaxPending,
		},
		&cli.StringFlag{
			Name:    "gateway",
			Aliases: []string{"g"},
			Usage:   "Number source to use (simulated or http)",
			EnvVars: []string{"GATEWAY"},
			Value:   string(source.KindSimulated),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Aliases: []string{"u"},
			Usage:   "Base URL of the upstream number service (http gateway only)",
			EnvVars: []string{"BASE_URL"},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token sent to the upstream number service (http gateway only)",
			EnvVars: []string{"UPSTREAM_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "window-size",
			Aliases: []string{"w"},
			Usage:   "Initial capacity of the sliding window",
			EnvVars: []string{"WINDOW_SIZE"},
			Value:   slidingwindow.DefaultSize,
		},
		&cli.DurationFlag{
			Name:    "deadline",
			Aliases: []string{"d"},
			Usage:   "Hard deadline for a single upstream fetch",
			EnvVars: []string{"FETCH_DEADLINE"},
			Value:   source.DefaultDeadline,
		},
		&cli.DurationFlag{
			Name:    "latency-warn",
			Usage:   "Log successful fetches at or above this duration (defaults to the deadline, 0 disables)",
			EnvVars: []string{"LATENCY_WARN"},
			Value:   source.DefaultDeadline,
		},
		&cli.DurationFlag{
			Name:    "sim-min-delay",
			Usage:   "Minimum simulated upstream delay",
			EnvVars: []string{"SIM_MIN_DELAY"},
			Value:   100 * time.Millisecond,
		},
		&cli.DurationFlag{
			Name:    "sim-max-delay",
			Usage:   "Maximum simulated upstream delay",
			EnvVars: []string{"SIM_MAX_DELAY"},
			Value:   400 * time.Millisecond,
		},
		&cli.Float64Flag{
			Name:    "sim-failure-rate",
			Usage:   "Probability in [0,1] that a simulated fetch fails",
			EnvVars: []string{"SIM_FAILURE_RATE"},
			Value:   0.05,
		},
		&cli.Int64Flag{
			Name:    "sim-seed",
			Usage:   "Seed for the simulated source (0 seeds from the clock)",
			EnvVars: []string{"SIM_SEED"},
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "instance",
			Usage:   "Instance name for metrics labels (e.g., 'windowavg-0')",
			EnvVars: []string{"INSTANCE_NAME"},
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Aliases: []string{"P"},
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'oci', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers for the outcome stream (comma-separated, empty disables publishing)",
			EnvVars: []string{"KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Aliases: []string{"t"},
			Usage:   "Kafka topic for the outcome stream",
			EnvVars: []string{"KAFKA_TOPIC"},
			Value:   "window-outcomes",
		},
		&cli.BoolFlag{
			Name:    "kafka-enable-logs",
			Aliases: []string{"l"},
			Usage:   "Enable Kafka logs",
			EnvVars: []string{"KAFKA_ENABLE_LOGS"},
			Value:   false,
		},
	}
}

// envFileFromArgs finds the env file before flags are parsed. A path given on
// the command line must exist; one from ENV_FILE may be missing.
func envFileFromArgs(args []string) (path string, required bool) {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != envFileFlag {
			continue
		}
		if hasValue {
			return value, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
	}
	return os.Getenv(envFileVar), false
}
