package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

// SchedulesRepository is durable CRUD over scheduled messages. All state
// transitions out of pending are conditional updates: they return false when
// the row's status changed between read and write, which callers treat as
// "another worker already handled this".
type SchedulesRepository interface {
	Create(ctx context.Context, s model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	List(ctx context.Context, contactID int64, status model.ScheduleStatus, limit, offset int) ([]model.Schedule, error)

	// ListDue returns pending schedules with send_at <= now, earliest first,
	// ties broken by id ascending.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error)

	// CompleteIf moves pending -> sent recording the attempt.
	CompleteIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error)
	// FailIf moves pending -> failed recording the attempt.
	FailIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error)
	// RescheduleIf rolls a recurring schedule to its next occurrence, keeping
	// it pending and resetting the per-occurrence attempt counter.
	RescheduleIf(ctx context.Context, id string, next time.Time, at time.Time) (bool, error)
	// RecordAttemptIf records a failed attempt that stays pending for retry.
	RecordAttemptIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error)
	// CancelIf moves pending -> cancelled.
	CancelIf(ctx context.Context, id string) (bool, error)
}

type SchedulesRepositoryImpl struct {
	db *sqlx.DB
}

func NewSchedulesRepository(db *sqlx.DB) *SchedulesRepositoryImpl {
	return &SchedulesRepositoryImpl{db: db}
}

var _ SchedulesRepository = (*SchedulesRepositoryImpl)(nil)

func (r *SchedulesRepositoryImpl) Create(ctx context.Context, s model.Schedule) error {
	const q = `
		INSERT INTO schedules
		    (id, contact_id, channel, subject, body, send_at, recurrence, end_date,
		     status, attempt_count, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, 'pending', 0, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.ContactID, s.Channel.String(), s.Subject, s.Body,
		s.SendAt, s.Recurrence.String(), s.EndDate,
	)
	return err
}

func (r *SchedulesRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var s model.Schedule
	err := r.db.GetContext(ctx, &s, `
		SELECT id, contact_id, channel, subject, body, send_at, recurrence, end_date,
		       status, last_attempt_at, attempt_count, created_at, updated_at
		  FROM schedules
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SchedulesRepositoryImpl) List(ctx context.Context, contactID int64, status model.ScheduleStatus, limit, offset int) ([]model.Schedule, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, contact_id, channel, subject, body, send_at, recurrence, end_date,
		       status, last_attempt_at, attempt_count, created_at, updated_at
		  FROM schedules
		 WHERE 1 = 1
	`
	args := []any{}

	if contactID > 0 {
		q += " AND contact_id = ?"
		args = append(args, contactID)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY send_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Schedule
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDue relies on the (status, send_at) index; an overdue send_at from a
// long engine outage is simply due now, never skipped.
func (r *SchedulesRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []model.Schedule
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, contact_id, channel, subject, body, send_at, recurrence, end_date,
		       status, last_attempt_at, attempt_count, created_at, updated_at
		  FROM schedules
		 WHERE status = 'pending' AND send_at <= ?
		 ORDER BY send_at ASC, id ASC
		 LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulesRepositoryImpl) transitionIf(ctx context.Context, id string, to model.ScheduleStatus, attempts int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		   SET status = ?, attempt_count = ?, last_attempt_at = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'pending'
	`, to.String(), attempts, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SchedulesRepositoryImpl) CompleteIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error) {
	return r.transitionIf(ctx, id, model.ScheduleSent, attempts, at)
}

func (r *SchedulesRepositoryImpl) FailIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error) {
	return r.transitionIf(ctx, id, model.ScheduleFailed, attempts, at)
}

func (r *SchedulesRepositoryImpl) RescheduleIf(ctx context.Context, id string, next time.Time, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		   SET send_at = ?, attempt_count = 0, last_attempt_at = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'pending'
	`, next, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SchedulesRepositoryImpl) RecordAttemptIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		   SET attempt_count = ?, last_attempt_at = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'pending'
	`, attempts, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SchedulesRepositoryImpl) CancelIf(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		   SET status = 'cancelled', updated_at = NOW()
		 WHERE id = ? AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
