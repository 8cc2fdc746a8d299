package outbox

import (
	"context"
	"encoding/json"
	"time"

	"carelink-chat/internal/domain/outbox"
	internalevents "carelink-chat/internal/events"
	"carelink-chat/internal/repository"
	"carelink-chat/pkg/events"
	"carelink-chat/pkg/logger"
)

// Processor publishes pending outbox rows in insertion order. A failed publish stops the
// batch so later rows never overtake an earlier one on the same topic.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  events.Publisher
	resolver   internalevents.ChannelResolver
	log        *logger.Logger
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, publisher events.Publisher, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		resolver:   internalevents.NewAggregateChannelResolver(),
		log:        log,
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch returns the number of events published.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		p.log.Errorf("outbox: load pending failed: %v", err)
		return 0
	}

	published := 0
	for _, e := range batch {
		if !e.Due(p.clock()) {
			break
		}
		if e.Exhausted(p.maxRetries) {
			p.log.Errorf("outbox: giving up on %s %s after %d attempts: %s", e.EventType, e.ID, e.RetryCount, e.Error)
			_ = p.repo.MarkFailed(ctx, e.ID, "max retries exceeded: "+e.Error)
			continue
		}

		channel, payload, err := p.encode(e)
		if err != nil {
			p.log.Errorf("outbox: dropping undeliverable %s: %v", e.ID, err)
			_ = p.repo.MarkFailed(ctx, e.ID, err.Error())
			continue
		}

		if err := p.publisher.Publish(ctx, channel, payload); err != nil {
			p.log.Warnf("outbox: publish %s to %s failed: %v", e.ID, channel, err)
			_ = p.repo.MarkRetry(ctx, e.ID, p.clock().Add(p.backoff(e.RetryCount)), err.Error())
			break
		}

		if err := p.repo.MarkProcessed(ctx, e.ID, p.clock()); err != nil {
			p.log.Warnf("outbox: mark %s processed failed: %v", e.ID, err)
		}
		published++
	}
	return published
}

func (p *Processor) encode(e outbox.OutboxEvent) (string, []byte, error) {
	channel, err := p.resolver.ResolveChannel(e)
	if err != nil {
		return "", nil, err
	}
	env := events.Envelope{
		EventType:     events.EventType(e.EventType),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       json.RawMessage(e.Payload),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", nil, err
	}
	return channel, payload, nil
}

const (
	maxBackoff      = time.Minute
	maxBackoffShift = 16
)

// backoff doubles the interval per retry up to maxBackoff. The shift is clamped so large
// retry counts cannot overflow.
func (p *Processor) backoff(retries int) time.Duration {
	d := p.interval << min(max(retries, 0), maxBackoffShift)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return d
}
