package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultDeadline is the latency budget for a single batch fetch.
const DefaultDeadline = 500 * time.Millisecond

var (
	// ErrTimeout is returned when no response arrived within the deadline.
	ErrTimeout = errors.New("fetch timed out")
	// ErrTransport is returned for every other upstream failure
	// (connection errors, bad status codes, malformed bodies).
	ErrTransport = errors.New("fetch failed")

	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownKind     = errors.New("unknown gateway kind")
)

// Gateway fetches a batch of numbers for a category. Implementations must
// honour ctx cancellation and report failures as ErrTimeout or ErrTransport.
type Gateway interface {
	FetchBatch(ctx context.Context, c Category) ([]int64, error)
}

// Kind names a Gateway implementation.
type Kind string

const (
	KindSimulated Kind = "simulated"
	KindHTTP      Kind = "http"
)

// Config selects and configures a Gateway variant.
type Config struct {
	Kind Kind

	// HTTP variant.
	BaseURL string
	Token   string

	// Simulated variant.
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	Seed        int64
}

// New builds the Gateway variant named by cfg.Kind.
func New(cfg Config) (Gateway, error) {
	switch cfg.Kind {
	case KindSimulated:
		return NewSimulatedGenerator(SimulatedConfig{
			MinDelay:    cfg.MinDelay,
			MaxDelay:    cfg.MaxDelay,
			FailureRate: cfg.FailureRate,
			Seed:        cfg.Seed,
		})
	case KindHTTP:
		return NewHTTPGateway(cfg.BaseURL, cfg.Token, nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// classifyCtxErr maps a context error onto the gateway error taxonomy.
func classifyCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
