package websocket

import (
	"context"

	"carelink-chat/pkg/events"
	"carelink-chat/pkg/logger"
)

// RedisBridge forwards every Redis channel:* message into the in-process hub.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, log: log}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	b.log.Infof("websocket bridge listening on %s", events.ChannelPattern)
	return b.subscriber.Subscribe(ctx, []string{events.ChannelPattern}, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}

// LocalPublisher delivers outbox envelopes straight to the hub when no Redis is configured.
// Only sessions connected to this process receive them.
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(hub *Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.hub.Broadcast(channel, payload)
	return nil
}
