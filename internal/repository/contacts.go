package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

type ContactsRepository interface {
	Create(ctx context.Context, c *model.Contact) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]model.Contact, error)

	// ApplyPipeline rewrites the pipeline fields and, when summary is
	// non-nil, the regenerated summary_text in a single transaction.
	// A nil summary keeps the prior summary_text in place.
	ApplyPipeline(ctx context.Context, id int64, p model.Pipeline, summary *string) error

	UpdateSummary(ctx context.Context, id int64, summary string) error
}

type ContactsRepositoryImpl struct {
	db *sqlx.DB
}

func NewContactsRepository(db *sqlx.DB) *ContactsRepositoryImpl {
	return &ContactsRepositoryImpl{db: db}
}

var _ ContactsRepository = (*ContactsRepositoryImpl)(nil)

const contactColumns = `
	id, first_name, last_name, email, phone, company, notes,
	potential_amount, accepted_amount, billed_amount, received_amount, rating,
	summary_text, created_at, updated_at
`

func (r *ContactsRepositoryImpl) Create(ctx context.Context, c *model.Contact) (int64, error) {
	const q = `
		INSERT INTO contacts
		    (first_name, last_name, email, phone, company, notes,
		     potential_amount, accepted_amount, billed_amount, received_amount, rating,
		     summary_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`
	res, err := r.db.ExecContext(ctx, q,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.Notes,
		c.PotentialAmount, c.AcceptedAmount, c.BilledAmount, c.ReceivedAmount, c.Rating,
		c.SummaryText,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *ContactsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var c model.Contact
	err := r.db.GetContext(ctx, &c, `SELECT `+contactColumns+` FROM contacts WHERE id = ? LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactsRepositoryImpl) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.db.QueryRowxContext(ctx, `SELECT 1 FROM contacts WHERE email = ? LIMIT 1`, email).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ContactsRepositoryImpl) List(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []model.Contact
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContactsRepositoryImpl) ApplyPipeline(ctx context.Context, id int64, p model.Pipeline, summary *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE contacts
		   SET potential_amount = ?, accepted_amount = ?, billed_amount = ?,
		       received_amount = ?, rating = ?, updated_at = NOW()
		 WHERE id = ?
	`, p.PotentialAmount, p.AcceptedAmount, p.BilledAmount, p.ReceivedAmount, p.Rating, id); err != nil {
		return err
	}

	if summary != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contacts SET summary_text = ? WHERE id = ?`, *summary, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *ContactsRepositoryImpl) UpdateSummary(ctx context.Context, id int64, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET summary_text = ?, updated_at = NOW() WHERE id = ?`, summary, id)
	return err
}
