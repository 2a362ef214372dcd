package msg

import "time"

// ConsumerConfig holds consumer group settings
type ConsumerConfig struct {
	Brokers []string
	Group   string
	Topics  []string

	// HeartbeatInterval is how often the client signals liveness to the
	// group coordinator, independent of message arrival.
	HeartbeatInterval time.Duration

	// SessionTimeout is how long the coordinator waits for a heartbeat
	// before rebalancing this member's partitions away. Keep it well
	// above the heartbeat interval.
	SessionTimeout time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 3 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	return c
}
