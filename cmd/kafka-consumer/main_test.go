package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomerk122/SRE/internal/msg"
	"go.uber.org/zap"
)

// orderedEvents records pipeline lifecycle events in the order they happen.
type orderedEvents struct {
	mu     sync.Mutex
	events []string
}

func (o *orderedEvents) add(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *orderedEvents) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.events))
	copy(out, o.events)
	return out
}

// singleRecordSource hands the handler one record, then blocks until the
// context is cancelled, mimicking a consumer waiting on the next fetch.
type singleRecordSource struct {
	events *orderedEvents
}

func (s *singleRecordSource) Run(ctx context.Context, handler func(context.Context, msg.Record) error) error {
	if err := handler(ctx, msg.Record{Topic: "database-changes", Value: []byte("{}")}); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *singleRecordSource) Close() {
	s.events.add("consumer closed")
}

type recordingHealth struct {
	events *orderedEvents
}

func (h *recordingHealth) Shutdown(ctx context.Context) error {
	h.events.add("health shutdown")
	return nil
}

func TestRunPipelineLetsInFlightRecordFinish(t *testing.T) {
	events := &orderedEvents{}
	started := make(chan struct{})
	release := make(chan struct{})

	// Handler blocks mid-record until released, standing in for slow work
	// in flight when the shutdown signal lands.
	handler := func(ctx context.Context, rec msg.Record) error {
		close(started)
		<-release
		events.add("record emitted")
		return nil
	}

	source := &singleRecordSource{events: events}
	health := &recordingHealth{events: events}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runPipeline(ctx, source, handler, health, zap.NewNop())
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received the record")
	}

	// Shutdown arrives while the record is still being handled. Nothing
	// may tear down until the handler returns.
	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, events.snapshot())

	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	assert.Equal(t, []string{"record emitted", "consumer closed", "health shutdown"}, events.snapshot())
}

func TestRunPipelineReturnsConsumerError(t *testing.T) {
	events := &orderedEvents{}
	source := &failingSource{events: events}
	health := &recordingHealth{events: events}

	err := runPipeline(context.Background(), source, func(context.Context, msg.Record) error { return nil }, health, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, []string{"consumer closed", "health shutdown"}, events.snapshot())
}

type failingSource struct {
	events *orderedEvents
}

func (s *failingSource) Run(ctx context.Context, handler func(context.Context, msg.Record) error) error {
	return assert.AnError
}

func (s *failingSource) Close() {
	s.events.add("consumer closed")
}
