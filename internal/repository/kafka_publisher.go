package repository

import (
	"context"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	pkgkafka "StockCast/pkg/kafka"

	"github.com/google/uuid"
)

var _ domrepo.ResultPublisher = (*KafkaPublisher)(nil)

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher emits forecast events keyed by ticker. Each event carries a
// trace_id header, reusing the one from ctx when the run was triggered by a
// consumed message.
type KafkaPublisher struct {
	producer batchPublisher
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, ev *models.ForecastEvent) error {
	trace := pkgkafka.TraceID(ctx)
	if trace == "" {
		trace = uuid.NewString()
	}
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:     []byte(ev.Ticker),
		Value:   ev,
		Headers: map[string]string{"trace_id": trace},
	}})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops events. Used when kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishForecast(context.Context, *models.ForecastEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
