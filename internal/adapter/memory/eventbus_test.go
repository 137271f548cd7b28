package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/annotation-desk/internal/domain/event"
)

func TestEventBus_DeliversToAllSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := NewEventBus()

	got1 := make(chan event.Event, 1)
	got2 := make(chan event.Event, 1)
	sub1, err := bus.Subscribe(ctx, func(_ context.Context, e event.Event) { got1 <- e })
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := bus.Subscribe(ctx, func(_ context.Context, e event.Event) { got2 <- e })
	require.NoError(t, err)
	defer sub2.Unsubscribe()

	e := event.New(event.TypeArtifactUploaded, "Amy", "a.png")
	require.NoError(t, bus.Publish(ctx, e))

	for _, ch := range []chan event.Event{got1, got2} {
		select {
		case received := <-ch:
			assert.Equal(t, e.ID, received.ID)
			assert.Equal(t, "a.png", received.Filename)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewEventBus()

	got := make(chan event.Event, 1)
	sub, err := bus.Subscribe(ctx, func(_ context.Context, e event.Event) { got <- e })
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, event.New(event.TypeAssignmentsCreated, "", "")))
	select {
	case <-got:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}

	bus.mu.RLock()
	assert.Empty(t, bus.subs)
	bus.mu.RUnlock()
}

func TestEventBus_ContextCancelEndsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewEventBus()

	sub, err := bus.Subscribe(ctx, func(context.Context, event.Event) {})
	require.NoError(t, err)

	cancel()
	sub.Unsubscribe()

	bus.mu.RLock()
	assert.Empty(t, bus.subs)
	bus.mu.RUnlock()
}

func TestEventBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(context.Background(), event.New(event.TypeAssignmentsCreated, "", "")))
}
