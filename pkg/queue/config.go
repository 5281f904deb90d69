package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const messageMaxBytes = 1 << 20

// Config holds the outcome publisher settings. Publishing is disabled when
// Brokers is empty.
type Config struct {
	Brokers           string        `env:"KAFKA_BROKERS"`                                               // Comma-separated bootstrap servers
	Topic             string        `env:"KAFKA_TOPIC"                    envDefault:"window-outcomes"` // Destination topic
	ClientID          string        `env:"KAFKA_CLIENT_ID"                envDefault:"windowavg"`       // Producer client id
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"              envDefault:"false"`           // Forward librdkafka logs to the logger
	NumPartitions     int           `env:"KAFKA_TOPIC_NUM_PARTITIONS"     envDefault:"1"`               // Partitions when the topic is created
	ReplicationFactor int           `env:"KAFKA_TOPIC_REPLICATION_FACTOR" envDefault:"1"`               // Replication factor when the topic is created
	PublishTimeout    time.Duration `env:"KAFKA_PUBLISH_TIMEOUT"          envDefault:"5s"`              // Bound on a single outcome delivery
	SASLUsername      string        `env:"KAFKA_SASL_USERNAME"`
	SASLPassword      string        `env:"KAFKA_SASL_PASSWORD"`
	SASLMechanism     string        `env:"KAFKA_SASL_MECHANISM"           envDefault:"SCRAM-SHA-512"`
	SecurityProtocol  string        `env:"KAFKA_SECURITY_PROTOCOL"        envDefault:"SASL_SSL"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse kafka config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether outcomes should be published.
func (c Config) Enabled() bool {
	return c.Brokers != ""
}

// Validate checks the settings needed to publish.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Topic == "" {
		return errors.New("invalid kafka topic: must not be empty")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("invalid kafka publish timeout: must be greater than 0")
	}
	return c.TopicConfig().Validate()
}

// TopicConfig returns the settings used to ensure the topic exists.
func (c Config) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.NumPartitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}

// AdminConfigMap builds the ConfigMap for a Kafka admin client.
func (c Config) AdminConfigMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{"bootstrap.servers": c.Brokers}
	c.applySASL(cm)
	return cm
}

// ProducerConfigMap builds the ConfigMap for the outcome producer.
func (c Config) ProducerConfigMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers": c.Brokers,
		"client.id":         c.ClientID,

		// Wait for all in-sync replicas.
		"acks":               "all",
		"enable.idempotence": true,

		// Outcomes are small and latency sensitive.
		"linger.ms":        1,
		"compression.type": "lz4",

		"go.logs.channel.enable": c.EnableLogs,
		"message.max.bytes":      messageMaxBytes,
	}
	c.applySASL(cm)
	return cm
}

// applySASL adds SASL settings when a username is configured.
func (c Config) applySASL(cm *kafka.ConfigMap) {
	if c.SASLUsername == "" {
		return
	}
	(*cm)["security.protocol"] = c.SecurityProtocol
	(*cm)["sasl.mechanism"] = c.SASLMechanism
	(*cm)["sasl.username"] = c.SASLUsername
	(*cm)["sasl.password"] = c.SASLPassword
}
