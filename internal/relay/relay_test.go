package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

type memOutbox struct {
	rows []model.OutboxEvent
}

func (m *memOutbox) Insert(_ context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	m.rows = append(m.rows, model.OutboxEvent{
		ID: int64(len(m.rows) + 1), Aggregate: aggregate, AggregateID: aggregateID,
		Topic: topic, Payload: payload,
	})
	return nil
}

func (m *memOutbox) ListUnpublished(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	for _, ev := range m.rows {
		if ev.PublishedAt == nil {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, ids []int64, at time.Time) error {
	for _, id := range ids {
		t := at
		m.rows[id-1].PublishedAt = &t
	}
	return nil
}

func (m *memOutbox) BumpAttempts(_ context.Context, ids []int64) error {
	for _, id := range ids {
		m.rows[id-1].Attempts++
	}
	return nil
}

type memPublisher struct {
	topics []string
	fail   map[string]bool // topic -> force error
}

func (p *memPublisher) Publish(_ context.Context, topic string, _, _ []byte) error {
	if p.fail[topic] {
		return errors.New("broker unreachable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func TestDrainPublishesAndMarks(t *testing.T) {
	outbox := &memOutbox{}
	_ = outbox.Insert(context.Background(), "schedule", "sc1", model.DeliveriesTopic, []byte(`{}`))
	_ = outbox.Insert(context.Background(), "contact", "1", model.PipelineChangedTopic, []byte(`{}`))

	pub := &memPublisher{}
	r := New(outbox, pub, zap.NewNop())
	r.drain(context.Background())

	if len(pub.topics) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.topics))
	}
	for _, ev := range outbox.rows {
		if ev.PublishedAt == nil {
			t.Errorf("row %d not marked published", ev.ID)
		}
	}

	// a second drain finds nothing
	r.drain(context.Background())
	if len(pub.topics) != 2 {
		t.Errorf("re-drain re-published already published rows")
	}
}

func TestDrainKeepsFailedRowsForRetry(t *testing.T) {
	outbox := &memOutbox{}
	_ = outbox.Insert(context.Background(), "schedule", "sc1", model.DeliveriesTopic, []byte(`{}`))
	_ = outbox.Insert(context.Background(), "contact", "1", model.PipelineChangedTopic, []byte(`{}`))

	pub := &memPublisher{fail: map[string]bool{model.DeliveriesTopic: true}}
	r := New(outbox, pub, zap.NewNop())
	r.drain(context.Background())

	if outbox.rows[0].PublishedAt != nil {
		t.Error("failed row marked published")
	}
	if outbox.rows[0].Attempts != 1 {
		t.Errorf("failed row attempts = %d, want 1", outbox.rows[0].Attempts)
	}
	if outbox.rows[1].PublishedAt == nil {
		t.Error("successful row not marked published")
	}

	// the broker recovers and the retry succeeds
	pub.fail = nil
	r.drain(context.Background())
	if outbox.rows[0].PublishedAt == nil {
		t.Error("row not published after broker recovery")
	}
}
