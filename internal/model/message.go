package model

import "time"

// Message is one delivered communication, kept as per-contact history in the
// messages table. Rows are written by the dispatch engine after a successful
// delivery and are never updated.
type Message struct {
	ID         string    `db:"id"`
	ScheduleID string    `db:"schedule_id"`
	ContactID  int64     `db:"contact_id"`
	Channel    Channel   `db:"channel"`
	Subject    string    `db:"subject"`
	Body       string    `db:"body"` // rendered content as delivered
	SentAt     time.Time `db:"sent_at"`
}
