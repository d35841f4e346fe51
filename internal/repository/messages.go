package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

// MessagesRepository persists the per-contact delivery history.
type MessagesRepository interface {
	Record(ctx context.Context, m model.Message) error
	ListRecent(ctx context.Context, contactID int64, limit int) ([]model.Message, error)
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

func (r *MessagesRepositoryImpl) Record(ctx context.Context, m model.Message) error {
	const q = `
		INSERT INTO messages (id, schedule_id, contact_id, channel, subject, body, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.ScheduleID, m.ContactID, m.Channel.String(), m.Subject, m.Body, m.SentAt,
	)
	return err
}

func (r *MessagesRepositoryImpl) ListRecent(ctx context.Context, contactID int64, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 5
	}
	var rows []model.Message
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, schedule_id, contact_id, channel, subject, body, sent_at
		  FROM messages
		 WHERE contact_id = ?
		 ORDER BY sent_at DESC, id DESC
		 LIMIT ?
	`, contactID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
