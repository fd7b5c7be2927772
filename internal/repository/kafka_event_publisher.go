package repository

import (
	"context"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
)

// EventTypeModelTrained is the "type" of the event emitted after training.
const EventTypeModelTrained = "model.trained"

type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher emits model lifecycle events keyed by bundle id.
type KafkaEventPublisher struct {
	producer keyedPublisher
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

// NewKafkaEventPublisher wraps a producer such as *kafka.Producer.
func NewKafkaEventPublisher(producer keyedPublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishModelTrained(ctx context.Context, ev models.ModelTrainedEvent) error {
	if ev.Type == "" {
		ev.Type = EventTypeModelTrained
	}
	return p.producer.Publish(ctx, p.topic, []byte(ev.BundleID), ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
