package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

// CHDeliveriesRepository archives and lists delivery attempts in ClickHouse.
type CHDeliveriesRepository interface {
	InsertBatch(ctx context.Context, rows []model.DeliveryAttempt) error
	ListByContact(ctx context.Context, contactID int64, outcome string, limit, offset int) ([]model.DeliveryAttempt, error)
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDeliveriesRepository(ch *sqlx.DB) CHDeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

func (r *chDeliveriesRepository) InsertBatch(ctx context.Context, rows []model.DeliveryAttempt) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*7)

	sb.WriteString(`INSERT INTO crm.delivery_attempts
		(schedule_id, contact_id, channel, outcome, reason, attempt, occurred_at) VALUES `)
	for i, a := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, a.ScheduleID, a.ContactID, a.Channel.String(), a.Outcome, a.Reason, a.Attempt, a.OccurredAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *chDeliveriesRepository) ListByContact(ctx context.Context, contactID int64, outcome string, limit, offset int) ([]model.DeliveryAttempt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT schedule_id, contact_id, channel, outcome, reason, attempt, occurred_at
		FROM crm.delivery_attempts
		WHERE contact_id = ?
	`
	args := []any{contactID}

	if outcome != "" {
		q += " AND outcome = ?"
		args = append(args, outcome)
	}

	q += " ORDER BY occurred_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.DeliveryAttempt
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
