package change

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Producer is the subset of the Kafka producer the publisher needs
type Producer interface {
	ProduceJSON(ctx context.Context, topic string, key string, v any) error
}

// Publisher sends change records to the change topic. Publishing is
// best-effort: a broker outage must never fail or delay the database write
// that triggered it.
type Publisher struct {
	producer Producer
	topic    string
	logger   *zap.Logger
}

// NewPublisher creates a publisher bound to the given topic
func NewPublisher(producer Producer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish sends a record synchronously. The producer performs a single send
// with its default retry policy; there is no retry loop here.
func (p *Publisher) Publish(ctx context.Context, rec Record) error {
	return p.producer.ProduceJSON(ctx, p.topic, rec.Key(), rec)
}

// PublishAsync encodes and sends a record on a detached goroutine. Failures
// are logged and swallowed; the caller's result path is never touched.
func (p *Publisher) PublishAsync(op Operation, table string, data map[string]any, userID *int64) {
	rec := NewRecord(op, table, data, userID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.Publish(ctx, rec); err != nil {
			p.logger.Error("failed to publish change record",
				zap.String("topic", p.topic),
				zap.String("table", rec.Table),
				zap.String("operation", string(rec.Operation)),
				zap.Error(err),
			)
		}
	}()
}
