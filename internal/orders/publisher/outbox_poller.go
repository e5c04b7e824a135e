package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/quickcart/internal/orders/domain"
	r "github.com/fjod/quickcart/internal/orders/repository"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller ships pending outbox rows to Kafka and marks them published.
// Delivery is at-least-once: a crash between write and mark republishes.
type OutboxPoller struct {
	tick   time.Duration
	repo   r.OutboxRepository
	writer MessageWriter
	log    *slog.Logger
}

func NewOutboxPoller(repo r.OutboxRepository, log *slog.Logger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewOutboxPollerWithWriter(repo, w, time.Second, log)
}

func NewOutboxPollerWithWriter(repo r.OutboxRepository, w MessageWriter, tick time.Duration, log *slog.Logger) *OutboxPoller {
	if log == nil {
		log = slog.Default()
	}
	return &OutboxPoller{tick: tick, repo: repo, writer: w, log: log.With("component", "outbox-poller")}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() {
	if err := p.writer.Close(); err != nil {
		p.log.Error("error closing kafka writer", "error", err)
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnpublishedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Error("failed to publish event", "event_id", event.ID, "error", err)
			continue
		}

		if err := p.repo.MarkEventAsPublished(ctx, event.ID); err != nil {
			p.log.Error("failed to mark event as published", "event_id", event.ID, "error", err)
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events ordered
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
}
