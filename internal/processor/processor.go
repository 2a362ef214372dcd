package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/tomerk122/SRE/internal/change"
	"github.com/tomerk122/SRE/internal/msg"
	"go.uber.org/zap"
)

// ProcessedBy identifies this processor in every record it emits
const ProcessedBy = "kafka-consumer"

// statsEvery is how many records pass between statistics snapshots
const statsEvery = 10

// ProcessedChange is a change record decorated with processing metadata.
// It exists only in the observability sink, never in storage.
type ProcessedChange struct {
	Operation           change.Operation `json:"operation"`
	Table               string           `json:"table"`
	Data                map[string]any   `json:"data"`
	UserID              *int64           `json:"userId"`
	OriginalTimestamp   time.Time        `json:"originalTimestamp"`
	ProcessedTimestamp  time.Time        `json:"processedTimestamp"`
	ProcessingLatencyMs int64            `json:"processingLatencyMs"`
	ProcessedBy         string           `json:"processedBy"`
}

// Snapshot is a point-in-time view of processing statistics
type Snapshot struct {
	TotalProcessed int64
	UptimeSeconds  int64
	RatePerMinute  float64
}

// Stats tracks throughput for the lifetime of the consumer process. It is
// mutated only from the consumer loop goroutine, but counters are atomic
// so snapshots read from elsewhere stay coherent.
type Stats struct {
	totalProcessed int64
	startTime      time.Time
}

// NewStats starts the uptime clock
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// Total returns the number of records processed so far
func (s *Stats) Total() int64 {
	return atomic.LoadInt64(&s.totalProcessed)
}

func (s *Stats) increment() int64 {
	return atomic.AddInt64(&s.totalProcessed, 1)
}

func (s *Stats) snapshot(now time.Time) Snapshot {
	total := atomic.LoadInt64(&s.totalProcessed)
	uptimeSecs := int64(now.Sub(s.startTime).Seconds())

	var rate float64
	if minutes := float64(uptimeSecs) / 60.0; minutes > 0 {
		rate = math.Round(float64(total)/minutes*100) / 100
	}

	return Snapshot{
		TotalProcessed: total,
		UptimeSeconds:  uptimeSecs,
		RatePerMinute:  rate,
	}
}

// Processor turns raw topic records into ProcessedChanges and emits them to
// the observability sink.
type Processor struct {
	sink   Sink
	stats  *Stats
	logger *zap.Logger
	now    func() time.Time
}

// NewProcessor creates a processor writing to the given sink
func NewProcessor(sink Sink, logger *zap.Logger) *Processor {
	return &Processor{
		sink:   sink,
		stats:  NewStats(),
		logger: logger,
		now:    time.Now,
	}
}

// Stats exposes the processor's throughput counters
func (p *Processor) Stats() *Stats {
	return p.stats
}

// Process parses a raw record and decorates it with processing metadata.
// Latency is clamped to zero so clock skew between producer and consumer
// never yields a negative value.
func (p *Processor) Process(rec msg.Record) (ProcessedChange, error) {
	var cr change.Record
	if err := json.Unmarshal(rec.Value, &cr); err != nil {
		return ProcessedChange{}, fmt.Errorf("failed to unmarshal change record: %w", err)
	}

	now := p.now()
	latency := now.Sub(cr.Timestamp).Milliseconds()
	if latency < 0 {
		latency = 0
	}

	return ProcessedChange{
		Operation:           cr.Operation,
		Table:               cr.Table,
		Data:                cr.Data,
		UserID:              cr.UserID,
		OriginalTimestamp:   cr.Timestamp,
		ProcessedTimestamp:  now,
		ProcessingLatencyMs: latency,
		ProcessedBy:         ProcessedBy,
	}, nil
}

// Handle processes one consumed record end to end. It never returns an
// error: malformed payloads and sink failures are logged and the record is
// considered handled, so the consumer always advances its offset.
func (p *Processor) Handle(ctx context.Context, rec msg.Record) error {
	pc, err := p.Process(rec)
	if err != nil {
		p.logger.Error("skipping malformed change record",
			zap.String("topic", rec.Topic),
			zap.Int64("offset", rec.Offset),
			zap.ByteString("raw", rec.Value),
			zap.Error(err),
		)
		return nil
	}

	if err := p.sink.Emit(pc); err != nil {
		p.logger.Error("failed to emit processed change",
			zap.String("table", pc.Table),
			zap.String("operation", string(pc.Operation)),
			zap.Error(err),
		)
	}

	if total := p.stats.increment(); total%statsEvery == 0 {
		if err := p.sink.EmitStats(p.stats.snapshot(p.now())); err != nil {
			p.logger.Error("failed to emit stats snapshot", zap.Error(err))
		}
	}

	return nil
}
