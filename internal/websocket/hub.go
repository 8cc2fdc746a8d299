package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"carelink-chat/pkg/events"
)

type opKind uint8

const (
	opSubscribe opKind = iota
	opUnsubscribe
	opLeave
)

type hubOp struct {
	kind   opKind
	client *Client
	topic  string
	done   chan struct{}
}

// Hub fans topic frames out to the sessions subscribed to them. Membership changes are
// applied by Run in arrival order; Broadcast only takes the read lock.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Client]map[string]struct{}
	topics   map[string]map[*Client]struct{}

	ops chan hubOp
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Client]map[string]struct{}),
		topics:   make(map[string]map[*Client]struct{}),
		ops:      make(chan hubOp, 512),
	}
}

// Run applies queued membership changes until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-h.ops:
			h.apply(op)
			if op.done != nil {
				close(op.done)
			}
		}
	}
}

// Register is synchronous so a subscription queued right after it always finds the session.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if _, ok := h.sessions[client]; !ok {
		h.sessions[client] = make(map[string]struct{})
	}
	h.mu.Unlock()
}

// Unregister queues the session for removal; its Send channel is closed once applied.
func (h *Hub) Unregister(client *Client) {
	h.ops <- hubOp{kind: opLeave, client: client}
}

// Subscribe returns a channel closed once the subscription is active.
func (h *Hub) Subscribe(client *Client, topic string) <-chan struct{} {
	return h.enqueue(opSubscribe, client, topic)
}

func (h *Hub) Unsubscribe(client *Client, topic string) <-chan struct{} {
	return h.enqueue(opUnsubscribe, client, topic)
}

func (h *Hub) enqueue(kind opKind, client *Client, topic string) <-chan struct{} {
	done := make(chan struct{})
	h.ops <- hubOp{kind: kind, client: client, topic: topic, done: done}
	return done
}

// Broadcast wraps an envelope in an event frame and queues it for every subscriber of topic.
func (h *Hub) Broadcast(topic string, envelope []byte) {
	frame, err := json.Marshal(events.Frame{Type: events.FrameEvent, Topic: topic, Event: json.RawMessage(envelope)})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		c.SendMessage(frame)
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Subscribed(client *Client, topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[client][topic]
	return ok
}

func (h *Hub) apply(op hubOp) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owned, live := h.sessions[op.client]
	if !live {
		// queued before the session left
		return
	}
	switch op.kind {
	case opSubscribe:
		subs, ok := h.topics[op.topic]
		if !ok {
			subs = make(map[*Client]struct{})
			h.topics[op.topic] = subs
		}
		subs[op.client] = struct{}{}
		owned[op.topic] = struct{}{}
	case opUnsubscribe:
		h.drop(op.client, op.topic)
		delete(owned, op.topic)
	case opLeave:
		for topic := range owned {
			h.drop(op.client, topic)
		}
		delete(h.sessions, op.client)
		close(op.client.Send)
	}
}

func (h *Hub) drop(client *Client, topic string) {
	subs := h.topics[topic]
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}
