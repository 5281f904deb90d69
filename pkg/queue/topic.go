package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const metadataTimeout = 10 * time.Second

// TopicConfig describes the outcome topic to create when missing.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// Validate checks the TopicConfig before creation.
func (tc TopicConfig) Validate() error {
	if tc.Name == "" {
		return errors.New("topic name cannot be empty")
	}
	if tc.NumPartitions <= 0 {
		return fmt.Errorf("number of partitions must be > 0, got %d", tc.NumPartitions)
	}
	if tc.ReplicationFactor <= 0 {
		return fmt.Errorf("replication factor must be > 0, got %d", tc.ReplicationFactor)
	}
	return nil
}

// EnsureTopic creates the topic if it does not exist. An existing topic is
// left as is; a partition count that differs from the config is only logged.
func EnsureTopic(ctx context.Context, admin *kafka.AdminClient, tc TopicConfig, log *zap.SugaredLogger) error {
	if err := tc.Validate(); err != nil {
		return fmt.Errorf("invalid topic config: %w", err)
	}

	name := tc.Name
	md, err := admin.GetMetadata(&name, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to get metadata for topic %q: %w", name, err)
	}
	if topic, ok := md.Topics[name]; ok && topic.Error.Code() == kafka.ErrNoError {
		if len(topic.Partitions) != tc.NumPartitions {
			log.Warnw("topic partition count differs from config",
				"topic", name,
				"current", len(topic.Partitions),
				"desired", tc.NumPartitions,
			)
		}
		return nil
	}

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             name,
		NumPartitions:     tc.NumPartitions,
		ReplicationFactor: tc.ReplicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %q: %w", name, err)
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError:
			log.Infow("created topic",
				"topic", r.Topic,
				"partitions", tc.NumPartitions,
				"replicationFactor", tc.ReplicationFactor,
			)
		case kafka.ErrTopicAlreadyExists:
			log.Infow("topic already exists", "topic", r.Topic)
		default:
			return fmt.Errorf("failed to create topic %q: %w", r.Topic, r.Error)
		}
	}
	return nil
}
