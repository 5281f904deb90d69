package slidingwindow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/window-average-service/pkg/metrics"
	"github.com/ava-labs/window-average-service/pkg/source"
	"go.uber.org/zap"
)

// Engine owns a Window and updates it from a source.Gateway.
type Engine struct {
	log     *zap.SugaredLogger
	window  *Window
	gateway source.Gateway
	metrics *metrics.Metrics

	// Hard bound on a single gateway call.
	deadline time.Duration
	// Successful fetches at or above this duration are logged and counted as
	// latency budget violations. Zero disables the check.
	warnAfter time.Duration

	// Serializes Update so snapshot, fetch and merge never interleave.
	mu sync.Mutex
}

// NewEngine creates an Engine and returns an error if arguments are invalid.
// Constraints: deadline>0; 0<=warnAfter<=deadline. m may be nil.
func NewEngine(
	log *zap.SugaredLogger,
	w *Window,
	gw source.Gateway,
	deadline, warnAfter time.Duration,
	m *metrics.Metrics,
) (*Engine, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if w == nil {
		return nil, errors.New("invalid window: must not be nil")
	}
	if gw == nil {
		return nil, errors.New("invalid gateway: must not be nil")
	}
	if deadline <= 0 {
		return nil, errors.New("invalid deadline: must be greater than 0")
	}
	if warnAfter < 0 || warnAfter > deadline {
		return nil, errors.New("invalid latency warning threshold: must be between 0 and deadline")
	}

	e := &Engine{
		log:       log,
		window:    w,
		gateway:   gw,
		metrics:   m,
		deadline:  deadline,
		warnAfter: warnAfter,
	}
	m.UpdateWindowMetrics(w.Size(), w.Len(), w.Average())
	return e, nil
}

// Window returns the window owned by the engine. Callers may read it and
// change its size; its contents only change through Update.
func (e *Engine) Window() *Window {
	return e.window
}

// Deadline returns the bound applied to each gateway call.
func (e *Engine) Deadline() time.Duration {
	return e.deadline
}

// SetSize changes the window capacity. It takes effect on the next Update.
func (e *Engine) SetSize(size int) error {
	if err := e.window.SetSize(size); err != nil {
		return err
	}
	e.metrics.UpdateWindowMetrics(size, e.window.Len(), e.window.Average())
	e.log.Infow("window size changed", "size", size)
	return nil
}

// Update fetches a batch for category c and merges it into the window.
//
// New values are appended in fetch order, values already present are skipped,
// and the oldest values are evicted until the window fits its capacity. On a
// gateway failure Update returns a *FetchError and leaves the window untouched.
// Update does not retry.
func (e *Engine) Update(ctx context.Context, c source.Category) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.window.Snapshot()
	start := time.Now()

	fetched, err := e.fetch(ctx, c)
	if err != nil {
		elapsed := time.Since(start)
		e.metrics.RecordUpdate(c.String(), err, elapsed.Seconds())
		e.log.Warnw("failed to update window",
			"category", c.Name(),
			"elapsed", elapsed,
			"error", err,
		)
		return nil, &FetchError{Category: c, Err: err}
	}

	res := e.window.merge(fetched)
	elapsed := time.Since(start)

	after := e.window.Snapshot()
	avg := e.window.Average()

	e.metrics.RecordMerge(len(res.added), len(res.evicted))
	e.metrics.RecordUpdate(c.String(), nil, elapsed.Seconds())
	e.metrics.UpdateWindowMetrics(e.window.Size(), len(after), avg)

	e.log.Debugw("window updated",
		"category", c.Name(),
		"fetched", len(fetched),
		"added", len(res.added),
		"evicted", len(res.evicted),
		"size", len(after),
		"avg", avg,
		"elapsed", elapsed,
	)

	return &Outcome{
		Category:     c,
		WindowBefore: before,
		WindowAfter:  after,
		Fetched:      append(make([]int64, 0, len(fetched)), fetched...),
		Average:      avg,
		Elapsed:      elapsed,
		ElapsedMs:    elapsed.Milliseconds(),
	}, nil
}

// fetch calls the gateway bounded by the deadline and normalizes its error
// into source.ErrTimeout or source.ErrTransport.
func (e *Engine) fetch(ctx context.Context, c source.Category) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	e.metrics.IncFetchInFlight()
	defer e.metrics.DecFetchInFlight()

	start := time.Now()
	nums, err := e.gateway.FetchBatch(ctx, c)
	took := time.Since(start)

	switch {
	case err != nil && !errors.Is(err, source.ErrTimeout) && !errors.Is(err, source.ErrTransport):
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", source.ErrTimeout, err)
		} else {
			err = fmt.Errorf("%w: %w", source.ErrTransport, err)
		}
	case err == nil && ctx.Err() != nil:
		// The gateway answered but only after the deadline passed.
		err = fmt.Errorf("%w: response after %s deadline", source.ErrTimeout, e.deadline)
	}

	e.metrics.RecordFetch(c.String(), err, took.Seconds())
	if err != nil {
		if errors.Is(err, source.ErrTimeout) {
			e.metrics.IncError(metrics.ErrTypeTimeout)
		} else {
			e.metrics.IncError(metrics.ErrTypeTransport)
		}
		return nil, err
	}

	if e.warnAfter > 0 && took >= e.warnAfter {
		e.metrics.RecordBudgetViolation(c.String())
		e.log.Warnw("slow fetch",
			"category", c.Name(),
			"took", took,
			"threshold", e.warnAfter,
		)
	}
	return nums, nil
}
