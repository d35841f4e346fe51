package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pipeline holds the four monetary tracking fields plus the rating.
// Amounts are non-negative; the rating is a 0-10 ordinal.
type Pipeline struct {
	PotentialAmount decimal.Decimal `db:"potential_amount" json:"potential_amount"`
	AcceptedAmount  decimal.Decimal `db:"accepted_amount"  json:"accepted_amount"`
	BilledAmount    decimal.Decimal `db:"billed_amount"    json:"billed_amount"`
	ReceivedAmount  decimal.Decimal `db:"received_amount"  json:"received_amount"`
	Rating          int             `db:"rating"           json:"rating"`
}

// Contact is the DB entity persisted in the contacts table.
// SummaryText is derived: it is regenerated whole whenever a pipeline field
// or the rating changes and is never edited directly.
type Contact struct {
	ID        int64  `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
	Company   string `db:"company"`
	Notes     string `db:"notes"`

	Pipeline

	SummaryText string    `db:"summary_text"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Address returns the delivery address for the given channel.
func (c Contact) Address(ch Channel) string {
	if ch == ChannelSMS {
		return c.Phone
	}
	return c.Email
}

// DisplayName is "First Last" with missing parts trimmed.
func (c Contact) DisplayName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
