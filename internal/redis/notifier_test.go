package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T) *SlotNotifier {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSlotNotifier(client, zerolog.Nop())
}

func TestSlotNotifier_PublishReachesSubscriber(t *testing.T) {
	n := newTestNotifier(t)
	doctorID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	signals, stop, err := n.Subscribe(ctx, doctorID, "2026-09-07")
	require.NoError(t, err)
	defer stop()

	n.SlotsChanged(ctx, doctorID, "2026-09-07")

	select {
	case _, ok := <-signals:
		assert.True(t, ok)
	case <-ctx.Done():
		t.Fatal("timed out waiting for signal")
	}
}

func TestSlotNotifier_ScopedToDoctorAndDate(t *testing.T) {
	n := newTestNotifier(t)
	doctorID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	signals, stop, err := n.Subscribe(ctx, doctorID, "2026-09-07")
	require.NoError(t, err)
	defer stop()

	// Other doctors and other dates must not signal this subscriber.
	n.SlotsChanged(ctx, uuid.New(), "2026-09-07")
	n.SlotsChanged(ctx, doctorID, "2026-09-08")

	select {
	case <-signals:
		t.Fatal("received signal for a channel we did not subscribe to")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlotNotifier_StopClosesChannel(t *testing.T) {
	n := newTestNotifier(t)
	doctorID := uuid.New()

	signals, stop, err := n.Subscribe(context.Background(), doctorID, "2026-09-07")
	require.NoError(t, err)

	stop()

	select {
	case _, ok := <-signals:
		assert.False(t, ok, "channel should be closed after stop")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after stop")
	}
}

func TestSlotNotifier_BurstsCoalesce(t *testing.T) {
	n := newTestNotifier(t)
	doctorID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	signals, stop, err := n.Subscribe(ctx, doctorID, "2026-09-07")
	require.NoError(t, err)
	defer stop()

	for i := 0; i < 10; i++ {
		n.SlotsChanged(ctx, doctorID, "2026-09-07")
	}

	// At least one signal arrives; the rest may have coalesced.
	select {
	case <-signals:
	case <-ctx.Done():
		t.Fatal("timed out waiting for signal")
	}
}
