package repository

import (
	"context"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	pkgkafka "EconDash/pkg/kafka"
)

// KafkaPublisher announces rebuilt tables on the events topic, keyed by
// build ID.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishRebuild(ctx context.Context, ev models.RebuildEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.BuildID), ev)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
