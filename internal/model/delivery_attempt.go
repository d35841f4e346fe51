package model

import "time"

// DeliveryAttempt is one row of the append-only attempt archive in
// ClickHouse. Writes are best-effort: the MySQL schedule row remains the
// source of truth.
type DeliveryAttempt struct {
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	ContactID  int64     `db:"contact_id"  json:"contact_id"`
	Channel    Channel   `db:"channel"     json:"channel"`
	Outcome    string    `db:"outcome"     json:"outcome"` // sent|failed
	Reason     string    `db:"reason"      json:"reason"`
	Attempt    int       `db:"attempt"     json:"attempt"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
