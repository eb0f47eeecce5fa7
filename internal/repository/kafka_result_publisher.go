package repository

import (
	"context"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
)

// MessageProducer is the subset of pkg/kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaResultPublisher implements ResultPublisher for Kafka.
type KafkaResultPublisher struct {
	producer MessageProducer
	topic    string
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)

// NewKafkaResultPublisher creates Kafka publisher.
func NewKafkaResultPublisher(producer MessageProducer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

// Publish keys results by asset so one asset's results stay ordered. Inline
// series without an asset fall back to the request id.
func (p *KafkaResultPublisher) Publish(ctx context.Context, msg *models.AnalysisResultMessage) error {
	key := msg.Asset
	if key == "" {
		key = msg.RequestID
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), msg)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
