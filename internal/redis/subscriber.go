package redis

import (
	"context"
	"errors"
	"fmt"

	"carelink-chat/pkg/events"

	"github.com/redis/go-redis/v9"
)

// Subscriber feeds pattern subscriptions to a handler until ctx is cancelled.
type Subscriber struct {
	client redis.UniversalClient
}

func NewSubscriber(client redis.UniversalClient) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe blocks. It fails fast when Redis does not confirm the subscription; after that
// go-redis reconnects and resubscribes on its own, and only a closed client ends the loop early.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, handler events.Handler) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close() //nolint:errcheck // closing a pubsub only fails when already closed

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis psubscribe %v: %w", patterns, err)
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("redis receive: %w", err)
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
