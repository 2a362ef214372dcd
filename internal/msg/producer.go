package msg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer publishes change records to Kafka. One Producer is opened at
// process start, shared by all in-flight requests (the kgo client
// serializes sends internally), and closed once during graceful shutdown.
type Producer struct {
	client    *kgo.Client
	logger    *zap.Logger
	clientID  string
	sent      int64
	failed    int64
	done      chan struct{}
	closeOnce sync.Once
}

// NewProducer creates a Kafka producer identified to the brokers as clientID
func NewProducer(brokers []string, clientID string, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DisableIdempotentWrite(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Producer{
		client:   client,
		logger:   logger,
		clientID: clientID,
		done:     make(chan struct{}),
	}

	logger.Info("change producer initialized",
		zap.Strings("brokers", brokers),
		zap.String("client_id", clientID),
	)

	go p.logStats()

	return p, nil
}

// ProduceJSON sends one JSON message to the topic: a single synchronous
// send with the client's default retry policy and a bounded timeout.
// Whether a failed send matters is the caller's decision.
func (p *Producer) ProduceJSON(ctx context.Context, topic string, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := p.client.ProduceSync(produceCtx, record)
	if err := result.FirstErr(); err != nil {
		atomic.AddInt64(&p.failed, 1)
		return fmt.Errorf("failed to produce message: %w", err)
	}

	atomic.AddInt64(&p.sent, 1)
	return nil
}

// Close flushes and closes the producer. Safe to call more than once.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.client != nil {
			p.client.Close()
		}
	})
}

// logStats logs send counters periodically until Close
func (p *Producer) logStats() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			sent := atomic.LoadInt64(&p.sent)
			failed := atomic.LoadInt64(&p.failed)
			if sent == 0 && failed == 0 {
				continue
			}
			p.logger.Info("change producer stats",
				zap.String("client_id", p.clientID),
				zap.Int64("sent", sent),
				zap.Int64("failed", failed),
			)
		}
	}
}
