package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const (
	flushTimeoutMs = 10000
	queueFullDelay = 100 * time.Millisecond
)

// KafkaPublisher is a synchronous QueuePublisher backed by a Kafka producer.
//
// Publish waits for the delivery report of each message. A background
// goroutine watches producer events and reports fatal errors on Errors.
// Close must be called to stop it and flush pending messages.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *zap.SugaredLogger

	errCh    chan error
	closedCh chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

var _ QueuePublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a producer from conf. ctx bounds the lifetime of
// the background goroutines.
func NewKafkaPublisher(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*KafkaPublisher, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	logsEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		return nil, fmt.Errorf("failed to get go.logs.channel.enable: %w", err)
	}
	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	q := &KafkaPublisher{
		producer: p,
		log:      log,
		errCh:    make(chan error, 1),
		closedCh: make(chan struct{}),
	}

	q.wg.Add(1)
	go q.watchEvents(ctx)
	if enabled, _ := logsEnabled.(bool); enabled {
		q.wg.Add(1)
		go q.forwardLogs(ctx)
	}
	return q, nil
}

// Publish produces msg and waits for its delivery report.
//
// If ctx is done before the report arrives Publish returns ctx.Err(); the
// message may still be delivered afterwards.
func (q *KafkaPublisher) Publish(ctx context.Context, msg Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kMsg := toKafkaMessage(msg)
	deliveryCh := make(chan kafka.Event, 1)

	if err := q.produce(ctx, kMsg, deliveryCh); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-deliveryCh:
		return handleDeliveryEvent(q.log, kMsg, ev)
	}
}

// Errors returns a channel that receives a fatal producer error. After an
// error is received the publisher must be closed and recreated.
func (q *KafkaPublisher) Errors() <-chan error {
	return q.errCh
}

// Close stops the background goroutines and flushes pending messages until
// the queue is empty or ctx is done. Later calls do nothing.
func (q *KafkaPublisher) Close(ctx context.Context) {
	q.once.Do(func() {
		q.log.Info("closing kafka publisher")
		close(q.closedCh)
		q.wg.Wait()
		close(q.errCh)

		for q.producer.Flush(flushTimeoutMs) > 0 {
			if ctx.Err() != nil {
				q.log.Warn("context done, abandoning producer flush")
				break
			}
			q.log.Warn("producer queue not flushed, retrying")
		}
		q.producer.Close()
	})
}

// produce enqueues msg, backing off while the local queue is full.
func (q *KafkaPublisher) produce(ctx context.Context, msg *kafka.Message, deliveryCh chan kafka.Event) error {
	for {
		err := q.producer.Produce(msg, deliveryCh)
		if err == nil {
			return nil
		}

		var kErr kafka.Error
		if !errors.As(err, &kErr) || kErr.Code() != kafka.ErrQueueFull {
			return fmt.Errorf("failed to produce: %w", err)
		}

		q.log.Warn("producer queue full, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(queueFullDelay):
		}
	}
}

func (q *KafkaPublisher) watchEvents(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closedCh:
			return
		case ev, ok := <-q.producer.Events():
			if !ok {
				q.report(errors.New("kafka producer events channel closed"))
				return
			}
			switch e := ev.(type) {
			case kafka.Error:
				if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
					q.report(fmt.Errorf("fatal kafka error %#x: %w", e.Code(), e))
					return
				}
				q.log.Warnw("ignoring kafka error", "code", e.Code(), "error", e)
			case *kafka.Message:
				// Reports without a per-call channel should not happen.
				q.log.Warnw("unexpected delivery report", "topicPartition", e.TopicPartition)
			default:
				q.log.Debugw("kafka event", "event", e.String())
			}
		}
	}
}

func (q *KafkaPublisher) forwardLogs(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closedCh:
			return
		case l, ok := <-q.producer.Logs():
			if !ok {
				return
			}
			q.log.Debugw("librdkafka", "level", l.Level, "tag", l.Tag, "message", l.Message)
		}
	}
}

func (q *KafkaPublisher) report(err error) {
	select {
	case q.errCh <- err:
	default:
		q.log.Warnw("dropping producer error, one is already pending", "error", err)
	}
}

// toKafkaMessage converts msg, emitting headers in key order.
func toKafkaMessage(msg Msg) *kafka.Message {
	topic := msg.Topic
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
	}
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return km
}

func handleDeliveryEvent(log *zap.SugaredLogger, msg *kafka.Message, ev kafka.Event) error {
	switch e := ev.(type) {
	case *kafka.Message:
		if err := e.TopicPartition.Error; err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
		log.Debugw("delivered outcome",
			"topic", *msg.TopicPartition.Topic,
			"partition", e.TopicPartition.Partition,
			"offset", e.TopicPartition.Offset,
		)
		return nil
	case kafka.Error:
		return fmt.Errorf("kafka error: code=%d fatal=%t: %w", e.Code(), e.IsFatal(), e)
	default:
		return fmt.Errorf("unexpected delivery event: %T", ev)
	}
}
