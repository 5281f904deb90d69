package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ava-labs/window-average-service/pkg/metrics"
	"github.com/ava-labs/window-average-service/pkg/slidingwindow"
	"github.com/ava-labs/window-average-service/pkg/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockQueuePublisher struct {
	mock.Mock
}

func (m *mockQueuePublisher) Publish(ctx context.Context, msg Msg) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockQueuePublisher) Close(ctx context.Context) {
	m.Called(ctx)
}

func testOutcome() *slidingwindow.Outcome {
	return &slidingwindow.Outcome{
		Category:     source.Prime,
		WindowBefore: []int64{2, 3, 5, 7, 11},
		WindowAfter:  []int64{3, 5, 7, 11, 13},
		Fetched:      []int64{2, 13},
		Average:      7.8,
		Elapsed:      120 * time.Millisecond,
		ElapsedMs:    120,
	}
}

func publishedCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "windowavg_publish_outcomes_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == status {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNewOutcomePublisher_Validation(t *testing.T) {
	t.Parallel()
	pub := &mockQueuePublisher{}
	log := zap.NewNop().Sugar()

	tests := []struct {
		name        string
		pub         QueuePublisher
		topic       string
		timeout     time.Duration
		log         *zap.SugaredLogger
		errContains string
	}{
		{name: "ok", pub: pub, topic: "outcomes", timeout: time.Second, log: log},
		{name: "nil publisher", topic: "outcomes", timeout: time.Second, log: log, errContains: "invalid publisher"},
		{name: "empty topic", pub: pub, timeout: time.Second, log: log, errContains: "invalid topic"},
		{name: "zero timeout", pub: pub, topic: "outcomes", log: log, errContains: "invalid publish timeout"},
		{name: "nil logger", pub: pub, topic: "outcomes", timeout: time.Second, errContains: "invalid logger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewOutcomePublisher(tt.pub, tt.topic, tt.timeout, tt.log, nil)
			if tt.errContains != "" {
				require.ErrorContains(t, err, tt.errContains)
				require.Nil(t, p)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, p)
		})
	}
}

func TestOutcomePublisher_Publish(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	pub := &mockQueuePublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(msg Msg) bool {
		return msg.Topic == "outcomes" && string(msg.Key) == "p"
	})).Return(nil).Once()

	p, err := NewOutcomePublisher(pub, "outcomes", time.Second, zap.NewNop().Sugar(), m)
	require.NoError(t, err)

	require.NoError(t, p.Publish(t.Context(), testOutcome()))
	pub.AssertExpectations(t)

	msg := pub.Calls[0].Arguments.Get(1).(Msg)
	assert.Equal(t, contentTypeJSON, msg.Headers[HeaderContentType])
	assert.Equal(t, "prime", msg.Headers[HeaderCategory])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "p", decoded["category"])
	assert.Equal(t, []any{2.0, 3.0, 5.0, 7.0, 11.0}, decoded["windowPrevState"])
	assert.Equal(t, []any{3.0, 5.0, 7.0, 11.0, 13.0}, decoded["windowCurrState"])
	assert.Equal(t, []any{2.0, 13.0}, decoded["numbers"])
	assert.InDelta(t, 7.8, decoded["avg"], 1e-9)
	assert.Equal(t, 120.0, decoded["elapsedMs"])

	assert.Equal(t, 1.0, publishedCount(t, reg, metrics.StatusSuccess))
}

func TestOutcomePublisher_PublishBoundsDelivery(t *testing.T) {
	t.Parallel()
	pub := &mockQueuePublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		assert.True(t, ok, "publish context has no deadline")
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
	})

	p, err := NewOutcomePublisher(pub, "outcomes", 50*time.Millisecond, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	require.NoError(t, p.Publish(t.Context(), testOutcome()))
	pub.AssertExpectations(t)
}

func TestOutcomePublisher_PublishFailure(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	core, recorded := observer.New(zap.WarnLevel)

	brokerDown := errors.New("broker not available")
	pub := &mockQueuePublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(brokerDown)

	p, err := NewOutcomePublisher(pub, "outcomes", time.Second, zap.New(core).Sugar(), m)
	require.NoError(t, err)

	err = p.Publish(t.Context(), testOutcome())
	require.ErrorIs(t, err, brokerDown)

	entries := recorded.FilterMessage("failed to publish outcome").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "prime", entries[0].ContextMap()["category"])
	assert.Equal(t, 1.0, publishedCount(t, reg, metrics.StatusError))
}

func TestOutcomePublisher_PublishNilOutcome(t *testing.T) {
	t.Parallel()
	pub := &mockQueuePublisher{}
	p, err := NewOutcomePublisher(pub, "outcomes", time.Second, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)

	require.ErrorContains(t, p.Publish(t.Context(), nil), "invalid outcome")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOutcomePublisher_Close(t *testing.T) {
	t.Parallel()
	pub := &mockQueuePublisher{}
	pub.On("Close", mock.Anything).Return().Once()

	p, err := NewOutcomePublisher(pub, "outcomes", time.Second, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	p.Close(t.Context())
	pub.AssertExpectations(t)
}
