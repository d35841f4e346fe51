package model

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) String() string { return string(c) }

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// ParseChannel normalizes input. Returns (value, true) if valid.
func ParseChannel(s string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail, true
	case "sms":
		return ChannelSMS, true
	default:
		return "", false
	}
}

type Recurrence string

const (
	RecurrenceNone  Recurrence = "none"
	RecurrenceDaily Recurrence = "daily"
)

func (r Recurrence) String() string { return string(r) }

func (r Recurrence) Valid() bool {
	return r == RecurrenceNone || r == RecurrenceDaily
}

// ParseRecurrence normalizes input; empty => none.
// Returns (value, true) if valid; otherwise (none, false).
func ParseRecurrence(s string) (Recurrence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RecurrenceNone, true
	case "daily":
		return RecurrenceDaily, true
	default:
		return RecurrenceNone, false
	}
}

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleSent      ScheduleStatus = "sent"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

func (s ScheduleStatus) String() string { return string(s) }

func (s ScheduleStatus) Valid() bool {
	switch s {
	case SchedulePending, ScheduleSent, ScheduleFailed, ScheduleCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s ScheduleStatus) Terminal() bool { return s != SchedulePending }

// Schedule is the DB entity persisted in the schedules table: a durable
// intent to deliver one message at one or more future times.
type Schedule struct {
	ID            string         `db:"id"`
	ContactID     int64          `db:"contact_id"`
	Channel       Channel        `db:"channel"`
	Subject       string         `db:"subject"` // email only
	Body          string         `db:"body"`
	SendAt        time.Time      `db:"send_at"`
	Recurrence    Recurrence     `db:"recurrence"`
	EndDate       *time.Time     `db:"end_date"` // date; nil = indefinite
	Status        ScheduleStatus `db:"status"`
	LastAttemptAt *time.Time     `db:"last_attempt_at"`
	AttemptCount  int            `db:"attempt_count"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// NextOccurrence returns the occurrence that follows the current SendAt.
func (s Schedule) NextOccurrence() time.Time {
	return s.SendAt.AddDate(0, 0, 1)
}

// SeriesComplete reports whether the occurrence at next falls strictly after
// the end date, i.e. the recurring series has run out.
func (s Schedule) SeriesComplete(next time.Time) bool {
	if s.Recurrence != RecurrenceDaily || s.EndDate == nil {
		return false
	}
	y, m, d := s.EndDate.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), s.EndDate.Location())
	return next.After(endOfDay)
}
