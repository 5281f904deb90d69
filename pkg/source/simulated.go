package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultMinDelay    = 100 * time.Millisecond
	DefaultMaxDelay    = 400 * time.Millisecond
	DefaultFailureRate = 0.05

	minBatch       = 3
	maxBatchSpread = 8
)

// Number pools served by the simulated feeds.
var simulatedPools = map[Category][]int64{
	Prime:     {2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47},
	Fibonacci: {55, 89, 144, 233, 377, 610, 987, 1597, 2584, 4181, 6765, 10946},
	Even:      {2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30, 32, 34, 36, 38, 40},
	Random:    {2, 19, 25, 7, 4, 24, 17, 27, 30, 21, 14, 10, 23, 15, 31, 9, 33},
}

// SimulatedConfig tunes the synthetic generator. Zero delays fall back to the
// defaults; a negative FailureRate disables injected failures.
type SimulatedConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	Seed        int64
}

// SimulatedGenerator is a Gateway that serves shuffled subsets of fixed pools
// after a random delay and occasionally fails.
type SimulatedGenerator struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ Gateway = (*SimulatedGenerator)(nil)

func NewSimulatedGenerator(cfg SimulatedConfig) (*SimulatedGenerator, error) {
	if cfg.MinDelay == 0 && cfg.MaxDelay == 0 {
		cfg.MinDelay, cfg.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, errors.New("invalid delay range: must satisfy 0 <= min <= max")
	}
	if cfg.FailureRate > 1 {
		return nil, errors.New("invalid failure rate: must not exceed 1")
	}
	if cfg.FailureRate < 0 {
		cfg.FailureRate = 0
	}
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SimulatedGenerator{
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		failureRate: cfg.FailureRate,
		rnd:         rand.New(rand.NewPCG(seed, seed>>1)),
	}, nil
}

func (g *SimulatedGenerator) FetchBatch(ctx context.Context, c Category) ([]int64, error) {
	pool, ok := simulatedPools[c]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrTransport, ErrUnknownCategory, c)
	}

	delay, fail, batch := g.draw(pool)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, classifyCtxErr(ctx.Err())
	case <-t.C:
	}

	if fail {
		return nil, fmt.Errorf("%w: simulated upstream error for %s", ErrTransport, c.Name())
	}
	return batch, nil
}

// draw takes every random decision for one call under the lock.
func (g *SimulatedGenerator) draw(pool []int64) (time.Duration, bool, []int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delay := g.minDelay
	if spread := g.maxDelay - g.minDelay; spread > 0 {
		delay += time.Duration(g.rnd.Int64N(int64(spread)))
	}
	fail := g.failureRate > 0 && g.rnd.Float64() < g.failureRate

	shuffled := make([]int64, len(pool))
	copy(shuffled, pool)
	g.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	n := min(minBatch+g.rnd.IntN(maxBatchSpread), len(shuffled))
	return delay, fail, shuffled[:n]
}
