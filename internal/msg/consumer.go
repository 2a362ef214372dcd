package msg

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Consumer wraps a Kafka consumer group member. Records are handed to the
// handler one at a time; the next record for a partition is not fetched
// until the current one's handler has returned.
type Consumer struct {
	client       *kgo.Client
	logger       *zap.Logger
	cfg          ConsumerConfig
	running      int32
	handledCount int64
	errorCount   int64
	done         chan struct{}
	closeOnce    sync.Once
}

// NewConsumer creates a new Kafka consumer joined to the configured group
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	cfg = cfg.withDefaults()

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(), // Commit after the handler returns
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.SessionTimeout(cfg.SessionTimeout),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	c := &Consumer{
		client: client,
		logger: logger,
		cfg:    cfg,
		done:   make(chan struct{}),
	}

	logger.Info("consumer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group", cfg.Group),
		zap.Strings("topics", cfg.Topics),
		zap.Duration("heartbeat_interval", cfg.HeartbeatInterval),
		zap.Duration("session_timeout", cfg.SessionTimeout),
	)

	go c.logStats()

	return c, nil
}

// Run starts consuming and calls handler for each record in per-partition
// offset order. A handler error is logged and the record is skipped: the
// offset is committed either way, so a bad record never wedges the loop.
// Run returns when ctx is cancelled or the client is closed; the record
// being handled at cancellation time finishes first.
func (c *Consumer) Run(ctx context.Context, handler func(context.Context, Record) error) error {
	c.logger.Info("starting consumer",
		zap.String("group", c.cfg.Group),
		zap.Strings("topics", c.cfg.Topics),
	)

	atomic.StoreInt32(&c.running, 1)
	defer atomic.StoreInt32(&c.running, 0)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", zap.String("group", c.cfg.Group))
			return ctx.Err()
		default:
			fetches := c.client.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return fmt.Errorf("kafka client closed")
			}

			// Transient fetch errors are logged and the loop keeps
			// going; franz-go retries the affected partitions.
			fetches.EachError(func(topic string, partition int32, err error) {
				if ctx.Err() != nil {
					return
				}
				atomic.AddInt64(&c.errorCount, 1)
				c.logger.Error("fetch error",
					zap.String("topic", topic),
					zap.Int32("partition", partition),
					zap.Error(err),
				)
			})

			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()

				rec := Record{
					Topic:     record.Topic,
					Key:       string(record.Key),
					Value:     record.Value,
					Partition: record.Partition,
					Offset:    record.Offset,
					Timestamp: record.Timestamp.UnixMilli(),
				}

				if err := handler(ctx, rec); err != nil {
					atomic.AddInt64(&c.errorCount, 1)
					c.logger.Error("handler failed, skipping record",
						zap.String("topic", rec.Topic),
						zap.String("key", rec.Key),
						zap.Int64("offset", rec.Offset),
						zap.Error(err),
					)
				}

				// The record is considered handled even on failure.
				c.client.CommitRecords(ctx, record)
				atomic.AddInt64(&c.handledCount, 1)
			}
		}
	}
}

// Close closes the consumer, leaving the group cleanly. Safe to call more
// than once.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.client != nil {
			c.client.Close()
		}
	})
}

// IsRunning returns whether the consumer loop is active
func (c *Consumer) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// logStats logs consumer statistics periodically until Close
func (c *Consumer) logStats() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			handled := atomic.LoadInt64(&c.handledCount)
			errors := atomic.LoadInt64(&c.errorCount)
			c.logger.Info("change consumer stats",
				zap.String("group", c.cfg.Group),
				zap.Int64("handled", handled),
				zap.Int64("errors", errors),
			)
		}
	}
}
