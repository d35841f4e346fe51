package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/db"
	"github.com/JackBungart/perceptive-crm/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo users and contacts...")

		if err := seedUsers(sqlDB); err != nil {
			return err
		}
		if err := seedContacts(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedUsers inserts deterministic demo users, one per role (idempotent).
func seedUsers(dbx *sqlx.DB) error {
	users := []model.User{
		{Username: "admin", APIKey: "11111111111111111111111111111111", Role: model.RoleMaster, Status: "active"},
		{Username: "sales-lead", APIKey: "22222222222222222222222222222222", Role: model.RoleManagement, Status: "active"},
		{Username: "field-eng", APIKey: "33333333333333333333333333333333", Role: model.RoleEngineer, Status: "active"},
		{Username: "accounts", APIKey: "44444444444444444444444444444444", Role: model.RoleBilling, Status: "active"},
		{Username: "former-emp", APIKey: "55555555555555555555555555555555", Role: model.RoleEngineer, Status: "suspended"},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO users
    (username, api_key, role, status, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    username   = VALUES(username),
    role       = VALUES(role),
    status     = VALUES(status),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, u := range users {
		if _, err := tx.Exec(q, u.Username, u.APIKey, u.Role.String(), u.Status, now, now); err != nil {
			return fmt.Errorf("insert user %q: %w", u.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit users: %w", err)
	}
	return nil
}

// seedContacts inserts demo contacts with pipeline figures (idempotent by email).
func seedContacts(dbx *sqlx.DB) error {
	contacts := []model.Contact{
		{
			FirstName: "Ada", LastName: "Nwosu", Email: "ada@brightworks.example",
			Phone: "+15550100", Company: "Brightworks",
			Pipeline: model.Pipeline{
				PotentialAmount: decimal.NewFromInt(12000),
				AcceptedAmount:  decimal.NewFromInt(8000),
				BilledAmount:    decimal.NewFromInt(5000),
				ReceivedAmount:  decimal.NewFromInt(3500),
				Rating:          8,
			},
		},
		{
			FirstName: "Marco", LastName: "Reyes", Email: "marco@harborline.example",
			Phone: "+15550101", Company: "Harborline",
			Pipeline: model.Pipeline{
				PotentialAmount: decimal.NewFromInt(4000),
				Rating:          5,
			},
		},
		{
			FirstName: "Yuki", LastName: "Tan", Email: "yuki@fernandco.example",
			Company: "Fern & Co",
			Pipeline: model.Pipeline{
				AcceptedAmount: decimal.NewFromInt(1500),
				BilledAmount:   decimal.NewFromInt(1500),
				ReceivedAmount: decimal.NewFromInt(1500),
				Rating:         9,
			},
		},
	}

	const q = `
INSERT INTO contacts
    (first_name, last_name, email, phone, company, notes,
     potential_amount, accepted_amount, billed_amount, received_amount, rating,
     summary_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, '', ?, ?, ?, ?, ?, '', ?, ?)
ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, c := range contacts {
		if _, err := tx.Exec(q,
			c.FirstName, c.LastName, c.Email, c.Phone, c.Company,
			c.PotentialAmount, c.AcceptedAmount, c.BilledAmount, c.ReceivedAmount, c.Rating,
			now, now,
		); err != nil {
			return fmt.Errorf("insert contact %q: %w", c.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contacts: %w", err)
	}
	return nil
}
