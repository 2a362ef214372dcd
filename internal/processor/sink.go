package processor

import "go.uber.org/zap"

// Sink receives processed changes and statistics snapshots. Implementations
// may fail; the processor treats sink errors as non-fatal.
type Sink interface {
	Emit(pc ProcessedChange) error
	EmitStats(s Snapshot) error
}

// LogSink emits each processed change and snapshot as one structured log line
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to the given logger
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(pc ProcessedChange) error {
	fields := []zap.Field{
		zap.String("operation", string(pc.Operation)),
		zap.String("table", pc.Table),
		zap.Any("data", pc.Data),
		zap.Time("original_timestamp", pc.OriginalTimestamp),
		zap.Time("processed_timestamp", pc.ProcessedTimestamp),
		zap.Int64("processing_latency_ms", pc.ProcessingLatencyMs),
		zap.String("processed_by", pc.ProcessedBy),
	}
	if pc.UserID != nil {
		fields = append(fields, zap.Int64("user_id", *pc.UserID))
	}
	s.logger.Info("database change processed", fields...)
	return nil
}

func (s *LogSink) EmitStats(snap Snapshot) error {
	s.logger.Info("processing stats",
		zap.Int64("total_processed", snap.TotalProcessed),
		zap.Int64("uptime_seconds", snap.UptimeSeconds),
		zap.Float64("rate_per_minute", snap.RatePerMinute),
	)
	return nil
}
