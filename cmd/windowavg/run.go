package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/window-average-service/pkg/api"
	"github.com/ava-labs/window-average-service/pkg/metrics"
	"github.com/ava-labs/window-average-service/pkg/queue"
	"github.com/ava-labs/window-average-service/pkg/slidingwindow"
	"github.com/ava-labs/window-average-service/pkg/source"
	"github.com/ava-labs/window-average-service/pkg/utils"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const (
	shutdownTimeout     = 5 * time.Second
	flushTimeoutOnClose = 15 * time.Second
)

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"listenAddr", cfg.ListenAddr,
		"maxPending", cfg.MaxPending,
		"gateway", cfg.Gateway.Kind,
		"baseURL", cfg.Gateway.BaseURL,
		"windowSize", cfg.WindowSize,
		"deadline", cfg.Deadline,
		"latencyWarn", cfg.LatencyWarn,
		"simMinDelay", cfg.Gateway.MinDelay,
		"simMaxDelay", cfg.Gateway.MaxDelay,
		"simFailureRate", cfg.Gateway.FailureRate,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"instance", cfg.Instance,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
		"kafkaBrokers", cfg.Kafka.Brokers,
		"kafkaTopic", cfg.Kafka.Topic,
	)

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Instance:      cfg.Instance,
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	gw, err := source.New(cfg.Gateway)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	window, err := slidingwindow.NewWindow(cfg.WindowSize)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	engine, err := slidingwindow.NewEngine(sugar, window, gw, cfg.Deadline, cfg.LatencyWarn, m)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink      api.OutcomeSink
		publisher *queue.OutcomePublisher
		pubErrCh  <-chan error
	)
	if cfg.Kafka.Enabled() {
		kp, err := newKafkaPublisher(ctx, cfg.Kafka, sugar)
		if err != nil {
			return err
		}
		publisher, err = queue.NewOutcomePublisher(kp, cfg.Kafka.Topic, cfg.Kafka.PublishTimeout, sugar, m)
		if err != nil {
			kp.Close(ctx)
			return fmt.Errorf("failed to create outcome publisher: %w", err)
		}
		sink = publisher
		pubErrCh = kp.Errors()
		sugar.Infow("publishing outcomes", "topic", cfg.Kafka.Topic)
	} else {
		sugar.Info("kafka brokers not set, outcome publishing disabled")
	}

	apiServer, err := api.NewServer(cfg.ListenAddr, sugar, engine, gw, sink, cfg.MaxPending)
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}

	var ready atomic.Bool
	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, func(context.Context) error {
		if !ready.Load() {
			return errors.New("starting")
		}
		return nil
	})
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	apiErrCh := apiServer.Start()
	ready.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return waitServer(gctx, "api server", apiErrCh)
	})
	g.Go(func() error {
		return waitServer(gctx, "metrics server", metricsErrCh)
	})
	if pubErrCh != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case err, ok := <-pubErrCh:
				if !ok {
					return nil
				}
				return fmt.Errorf("kafka publisher failed: %w", err)
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}
	ready.Store(false)

	shutdown(sugar, apiServer, publisher, metricsServer)
	sugar.Info("shutdown complete")
	return err
}

// waitServer blocks until ctx is done or the server reports a failure.
func waitServer(ctx context.Context, name string, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return nil
	}
}

// newKafkaPublisher ensures the outcome topic exists and starts a producer.
func newKafkaPublisher(ctx context.Context, cfg queue.Config, sugar *zap.SugaredLogger) (*queue.KafkaPublisher, error) {
	admin, err := confluentKafka.NewAdminClient(cfg.AdminConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer admin.Close()

	if err := queue.EnsureTopic(ctx, admin, cfg.TopicConfig(), sugar); err != nil {
		return nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
	}

	kp, err := queue.NewKafkaPublisher(ctx, cfg.ProducerConfigMap(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return kp, nil
}

// shutdown stops intake first, then flushes outcomes, then drops metrics.
func shutdown(
	sugar *zap.SugaredLogger,
	apiServer *api.Server,
	publisher *queue.OutcomePublisher,
	metricsServer *metrics.Server,
) {
	sugar.Info("shutting down api server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		sugar.Warnw("api server shutdown error", "error", err)
	}

	if publisher != nil {
		sugar.Info("flushing outcome publisher")
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), flushTimeoutOnClose)
		defer cancelFlush()
		publisher.Close(flushCtx)
	}

	sugar.Info("shutting down metrics server")
	metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelMetrics()
	if err := metricsServer.Shutdown(metricsCtx); err != nil {
		sugar.Warnw("metrics server shutdown error", "error", err)
	}
}
