package redisclient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SlotNotifier fans out slot-change signals over Redis pub/sub, one
// channel per (doctor, date). Signals carry no payload; subscribers
// re-read the store, so a dropped message only delays a snapshot until
// the next change.
type SlotNotifier struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewSlotNotifier(client *redis.Client, logger zerolog.Logger) *SlotNotifier {
	return &SlotNotifier{client: client, logger: logger}
}

func channelKey(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, date)
}

// SlotsChanged publishes a change signal. Best-effort: a publish
// failure is logged, never surfaced, because the store commit already
// happened.
func (n *SlotNotifier) SlotsChanged(ctx context.Context, doctorID uuid.UUID, date string) {
	if err := n.client.Publish(ctx, channelKey(doctorID, date), "changed").Err(); err != nil {
		n.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Str("date", date).Msg("slot change publish failed")
	}
}

// Subscribe returns a signal channel for one (doctor, date) pair plus
// a stop function. The channel closes when stop is called or the
// underlying subscription ends; bursts of signals coalesce.
func (n *SlotNotifier) Subscribe(ctx context.Context, doctorID uuid.UUID, date string) (<-chan struct{}, func(), error) {
	sub := n.client.Subscribe(ctx, channelKey(doctorID, date))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channelKey(doctorID, date), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range sub.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	stop := func() { _ = sub.Close() }
	return out, stop, nil
}
