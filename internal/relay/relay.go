// Package relay drains the outbox table into Kafka.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/repository"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls unpublished outbox rows and publishes them in order. Delivery
// to Kafka is at-least-once: a crash after publish but before MarkPublished
// re-publishes the row.
type Relay struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	log       *zap.Logger

	Tick      time.Duration
	BatchSize int
}

func New(outbox repository.OutboxRepository, publisher Publisher, log *zap.Logger) *Relay {
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		log:       log,
		Tick:      2 * time.Second,
		BatchSize: 100,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.Tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	rows, err := r.outbox.ListUnpublished(ctx, r.BatchSize)
	if err != nil {
		r.log.Warn("list outbox", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}

	var published, failed []int64
	for _, ev := range rows {
		if err := r.publisher.Publish(ctx, ev.Topic, []byte(ev.AggregateID), ev.Payload); err != nil {
			r.log.Warn("publish outbox event",
				zap.Int64("id", ev.ID), zap.String("topic", ev.Topic), zap.Error(err))
			failed = append(failed, ev.ID)
			continue
		}
		published = append(published, ev.ID)
	}

	if err := r.outbox.MarkPublished(ctx, published, time.Now().UTC()); err != nil {
		r.log.Warn("mark published", zap.Error(err))
	}
	if err := r.outbox.BumpAttempts(ctx, failed); err != nil {
		r.log.Warn("bump outbox attempts", zap.Error(err))
	}

	r.log.Debug("outbox drained", zap.Int("published", len(published)), zap.Int("failed", len(failed)))
}
