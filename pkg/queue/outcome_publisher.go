package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/window-average-service/pkg/metrics"
	"github.com/ava-labs/window-average-service/pkg/slidingwindow"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// OutcomePublisher publishes window outcomes as JSON, keyed by category code
// so every category stays ordered within its partition.
type OutcomePublisher struct {
	pub     QueuePublisher
	topic   string
	timeout time.Duration
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewOutcomePublisher returns an error if arguments are invalid. m may be nil.
func NewOutcomePublisher(
	pub QueuePublisher,
	topic string,
	timeout time.Duration,
	log *zap.SugaredLogger,
	m *metrics.Metrics,
) (*OutcomePublisher, error) {
	if pub == nil {
		return nil, errors.New("invalid publisher: must not be nil")
	}
	if topic == "" {
		return nil, errors.New("invalid topic: must not be empty")
	}
	if timeout <= 0 {
		return nil, errors.New("invalid publish timeout: must be greater than 0")
	}
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	return &OutcomePublisher{
		pub:     pub,
		topic:   topic,
		timeout: timeout,
		log:     log,
		metrics: m,
	}, nil
}

// Publish delivers out. Failures are logged, counted and returned; the
// outcome itself is already applied to the window.
func (p *OutcomePublisher) Publish(ctx context.Context, out *slidingwindow.Outcome) error {
	if out == nil {
		return errors.New("invalid outcome: must not be nil")
	}
	value, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err = p.pub.Publish(ctx, Msg{
		Topic: p.topic,
		Key:   []byte(out.Category.String()),
		Value: value,
		Headers: map[string]string{
			HeaderContentType: contentTypeJSON,
			HeaderCategory:    out.Category.Name(),
		},
	})
	p.metrics.RecordPublish(err, time.Since(start).Seconds())
	if err != nil {
		p.log.Warnw("failed to publish outcome",
			"topic", p.topic,
			"category", out.Category.Name(),
			"error", err,
		)
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// Close closes the underlying QueuePublisher.
func (p *OutcomePublisher) Close(ctx context.Context) {
	p.pub.Close(ctx)
}
