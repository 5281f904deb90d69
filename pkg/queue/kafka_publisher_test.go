package queue

import (
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestToKafkaMessage(t *testing.T) {
	t.Parallel()
	msg := Msg{
		Topic: "outcomes",
		Key:   []byte("f"),
		Value: []byte(`{"avg":1}`),
		Headers: map[string]string{
			HeaderContentType: contentTypeJSON,
			HeaderCategory:    "fibonacci",
		},
	}

	km := toKafkaMessage(msg)

	require.NotNil(t, km.TopicPartition.Topic)
	assert.Equal(t, "outcomes", *km.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, km.TopicPartition.Partition)
	assert.Equal(t, []byte("f"), km.Key)
	assert.Equal(t, []byte(`{"avg":1}`), km.Value)
	assert.Equal(t, []kafka.Header{
		{Key: HeaderCategory, Value: []byte("fibonacci")},
		{Key: HeaderContentType, Value: []byte(contentTypeJSON)},
	}, km.Headers)
}

func TestToKafkaMessage_NoHeaders(t *testing.T) {
	t.Parallel()
	km := toKafkaMessage(Msg{Topic: "outcomes"})
	assert.Empty(t, km.Headers)
}

func TestHandleDeliveryEvent(t *testing.T) {
	t.Parallel()
	topic := "outcomes"
	sent := &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny}}

	tests := []struct {
		name        string
		event       kafka.Event
		errContains string
	}{
		{
			name: "delivered",
			event: &kafka.Message{TopicPartition: kafka.TopicPartition{
				Topic: &topic, Partition: 0, Offset: kafka.Offset(42),
			}},
		},
		{
			name: "delivery error",
			event: &kafka.Message{TopicPartition: kafka.TopicPartition{
				Topic: &topic, Partition: 0, Error: errors.New("message timed out"),
			}},
			errContains: "delivery failed",
		},
		{
			name:        "kafka error event",
			event:       kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", false),
			errContains: "kafka error",
		},
		{
			name:        "unexpected event",
			event:       kafka.OffsetsCommitted{},
			errContains: "unexpected delivery event",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := handleDeliveryEvent(zaptest.NewLogger(t).Sugar(), sent, tt.event)
			if tt.errContains != "" {
				require.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
		})
	}
}
