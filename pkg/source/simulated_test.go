package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSimulatedGenerator_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		cfg         SimulatedConfig
		errContains string
	}{
		{name: "ok: defaults", cfg: SimulatedConfig{}},
		{name: "ok: fixed delay", cfg: SimulatedConfig{MinDelay: time.Millisecond, MaxDelay: time.Millisecond}},
		{name: "ok: negative failure rate disables failures", cfg: SimulatedConfig{FailureRate: -1}},
		{
			name:        "error: max below min",
			cfg:         SimulatedConfig{MinDelay: 10 * time.Millisecond, MaxDelay: time.Millisecond},
			errContains: "invalid delay range",
		},
		{
			name:        "error: negative min",
			cfg:         SimulatedConfig{MinDelay: -time.Millisecond, MaxDelay: time.Millisecond},
			errContains: "invalid delay range",
		},
		{
			name:        "error: failure rate above one",
			cfg:         SimulatedConfig{FailureRate: 1.5},
			errContains: "invalid failure rate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := NewSimulatedGenerator(tt.cfg)
			if tt.errContains != "" {
				require.ErrorContains(t, err, tt.errContains)
				require.Nil(t, g)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, g)
		})
	}
}

func TestSimulatedGenerator_BatchComesFromPool(t *testing.T) {
	t.Parallel()
	g, err := NewSimulatedGenerator(SimulatedConfig{
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		FailureRate: -1,
		Seed:        42,
	})
	require.NoError(t, err)

	for _, c := range Categories {
		pool := make(map[int64]struct{}, len(simulatedPools[c]))
		for _, n := range simulatedPools[c] {
			pool[n] = struct{}{}
		}
		for range 20 {
			batch, err := g.FetchBatch(t.Context(), c)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(batch), minBatch)
			require.LessOrEqual(t, len(batch), minBatch+maxBatchSpread-1)

			seen := make(map[int64]struct{}, len(batch))
			for _, n := range batch {
				require.Contains(t, pool, n, "category %s returned %d outside its pool", c, n)
				require.NotContains(t, seen, n, "batch repeats %d", n)
				seen[n] = struct{}{}
			}
		}
	}
}

func TestSimulatedGenerator_AlwaysFails(t *testing.T) {
	t.Parallel()
	g, err := NewSimulatedGenerator(SimulatedConfig{
		MinDelay:    time.Millisecond,
		MaxDelay:    time.Millisecond,
		FailureRate: 1,
		Seed:        7,
	})
	require.NoError(t, err)

	_, err = g.FetchBatch(t.Context(), Prime)
	require.ErrorIs(t, err, ErrTransport)
}

func TestSimulatedGenerator_HonoursDeadline(t *testing.T) {
	t.Parallel()
	g, err := NewSimulatedGenerator(SimulatedConfig{
		MinDelay:    time.Second,
		MaxDelay:    time.Second,
		FailureRate: -1,
		Seed:        1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = g.FetchBatch(ctx, Even)
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSimulatedGenerator_UnknownCategory(t *testing.T) {
	t.Parallel()
	g, err := NewSimulatedGenerator(SimulatedConfig{FailureRate: -1, MinDelay: 1, MaxDelay: 1})
	require.NoError(t, err)

	_, err = g.FetchBatch(t.Context(), Category("x"))
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestNew_SelectsVariant(t *testing.T) {
	t.Parallel()

	gw, err := New(Config{Kind: KindSimulated})
	require.NoError(t, err)
	require.IsType(t, &SimulatedGenerator{}, gw)

	gw, err = New(Config{Kind: KindHTTP, BaseURL: "http://localhost:8080/evaluation-service"})
	require.NoError(t, err)
	require.IsType(t, &HTTPGateway{}, gw)

	_, err = New(Config{Kind: "carrier-pigeon"})
	require.ErrorIs(t, err, ErrUnknownKind)
}
