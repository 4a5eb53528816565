package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDeliversToSubscribers(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "students"))

	for _, ch := range []<-chan string{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, "students", got)
		case <-time.After(time.Second):
			t.Fatal("signal not delivered")
		}
	}
}

func TestLocalBusSubscriptionEndsWithContext(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestLocalBusPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()
	_, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, bus.Publish(ctx, "enrollments"))
	}
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(ctx, "enrollments"))
}
