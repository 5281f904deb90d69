// Package queue publishes window outcomes to a durable queue.
//
// QueuePublisher is the backend-neutral interface; KafkaPublisher implements
// it on top of confluent-kafka-go. OutcomePublisher encodes
// slidingwindow.Outcome values as JSON and hands them to a QueuePublisher,
// recording the result in metrics.
//
// All QueuePublisher implementations require Close to be called exactly once
// to release resources and flush in-flight messages.
package queue
