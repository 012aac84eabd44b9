package notify

import (
	"context"
	"testing"
	"time"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelName(t *testing.T) {
	assert.Equal(t, "dealflow:deal:d-42", ChannelName(DefaultPrefix, "d-42"))

	p := NewRedisPublisher(RedisOptions{Addr: "localhost:6379", Prefix: "acme"})
	defer p.Close()
	assert.Equal(t, "acme:deal:d-42", p.Channel("d-42"))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), Event{Type: EventTaskUpdated, DealID: "d1"}))
	require.NoError(t, r.Publish(context.Background(), Event{Type: EventOverdue, DealID: "d1", Count: 2}))
	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventOverdue, events[1].Type)
}

// TestRedisRoundTrip requires a running Redis and skips otherwise.
func TestRedisRoundTrip(t *testing.T) {
	p := NewRedisPublisher(RedisOptions{Addr: "localhost:6379"})
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	events, err := p.Subscribe(ctx, "deal-roundtrip")
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, Event{
		Type:   EventTaskUpdated,
		DealID: "deal-roundtrip",
		TaskID: "t1",
		Status: models.TaskStatusComplete,
	}))

	select {
	case e := <-events:
		assert.Equal(t, EventTaskUpdated, e.Type)
		assert.Equal(t, "t1", e.TaskID)
		assert.Equal(t, models.TaskStatusComplete, e.Status)
		assert.False(t, e.Timestamp.IsZero())
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
