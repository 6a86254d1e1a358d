// Package kafka adapts messaging.Broker to a real Kafka cluster via
// IBM/sarama, so Queue DLQ exports have somewhere durable to land
// outside the broker's own process.
package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/emanuel-epifani/nexo/pkg/messaging"
)

// Config configures the Kafka adapter.
type Config struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Version string   `env:"KAFKA_VERSION" env-default:"3.6.0"`
}

// Broker is a messaging.Broker backed by a Kafka cluster.
type Broker struct {
	cfg    Config
	client sarama.Client
}

// New dials the given Kafka brokers and returns a ready Broker.
func New(cfg Config) (*Broker, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Consumer.Return.Errors = true

	if cfg.Version != "" {
		if v, err := sarama.ParseKafkaVersion(cfg.Version); err == nil {
			saramaCfg.Version = v
		}
	}

	client, err := sarama.NewClient(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}

	return &Broker{cfg: cfg, client: client}, nil
}

func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	sp, err := sarama.NewSyncProducerFromClient(b.client)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	return &producer{broker: b, topic: topic, producer: sp}, nil
}

func (b *Broker) Close() error {
	return b.client.Close()
}

func (b *Broker) Healthy(ctx context.Context) bool {
	return !b.client.Closed()
}
