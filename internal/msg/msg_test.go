package msg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProducerCloseIsIdempotent(t *testing.T) {
	p, err := NewProducer([]string{"127.0.0.1:1"}, "test-producer", zap.NewNop())
	require.NoError(t, err)

	p.Close()
	p.Close() // shutdown paths may close again; must not panic
}

func TestConsumerCloseIsIdempotent(t *testing.T) {
	c, err := NewConsumer(ConsumerConfig{
		Brokers: []string{"127.0.0.1:1"},
		Group:   "test-group",
		Topics:  []string{"test-topic"},
	}, zap.NewNop())
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.False(t, c.IsRunning())
}

func TestConsumerConfigDefaults(t *testing.T) {
	cfg := ConsumerConfig{}.withDefaults()
	assert.Equal(t, 3*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.SessionTimeout)

	cfg = ConsumerConfig{
		HeartbeatInterval: time.Second,
		SessionTimeout:    45 * time.Second,
	}.withDefaults()
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 45*time.Second, cfg.SessionTimeout)
}
