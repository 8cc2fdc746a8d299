package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher is the event bus sink used by the outbox processor. Delivery is fire-and-forget
// pub/sub: a gateway that is not subscribed at publish time misses the envelope and its
// sessions catch up over HTTP.
type Publisher struct {
	client redis.UniversalClient
}

func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// Publish reports an error only when Redis rejects the command, so the outbox row is retried.
// Zero receivers is not an error.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}
