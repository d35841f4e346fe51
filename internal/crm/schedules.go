package crm

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/metrics"
	"github.com/JackBungart/perceptive-crm/internal/model"
	"github.com/JackBungart/perceptive-crm/internal/repository"
	"github.com/JackBungart/perceptive-crm/internal/util"
)

const maxBodyRunes = 2000

// ScheduleService validates and persists scheduled messages. After creation
// a schedule is mutated only by the dispatch engine (status/attempt fields)
// or by Cancel.
type ScheduleService struct {
	schedules repository.SchedulesRepository
	contacts  repository.ContactsRepository
	log       *zap.Logger
}

func NewScheduleService(
	schedules repository.SchedulesRepository,
	contacts repository.ContactsRepository,
	log *zap.Logger,
) *ScheduleService {
	return &ScheduleService{schedules: schedules, contacts: contacts, log: log}
}

type ScheduleInput struct {
	ContactID  int64      `json:"contact_id"`
	Channel    string     `json:"channel"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	SendAt     time.Time  `json:"send_at"`
	Recurrence string     `json:"recurrence"`
	EndDate    *time.Time `json:"end_date"`
}

// Create validates the request and persists a pending schedule. A send_at in
// the past is allowed: it is simply due on the next sweep.
func (s *ScheduleService) Create(ctx context.Context, in ScheduleInput) (*model.Schedule, error) {
	ch, ok := model.ParseChannel(in.Channel)
	if !ok {
		return nil, invalid("channel", "must be email or sms")
	}

	rec, ok := model.ParseRecurrence(in.Recurrence)
	if !ok {
		return nil, invalid("recurrence", "must be none or daily")
	}

	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" {
		return nil, invalid("body", "must not be empty")
	}
	if len([]rune(in.Body)) > maxBodyRunes {
		return nil, invalid("body", "too long")
	}

	in.Subject = strings.TrimSpace(in.Subject)
	if ch == model.ChannelEmail && in.Subject == "" {
		return nil, invalid("subject", "required for email")
	}

	if in.SendAt.IsZero() {
		return nil, invalid("send_at", "must be set")
	}

	if rec == model.RecurrenceNone && in.EndDate != nil {
		return nil, invalid("end_date", "only valid with daily recurrence")
	}
	if rec == model.RecurrenceDaily && in.EndDate != nil {
		sy, sm, sd := in.SendAt.UTC().Date()
		startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
		ey, em, ed := in.EndDate.UTC().Date()
		endDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
		if endDay.Before(startDay) {
			return nil, invalid("end_date", "must not precede send_at's date")
		}
	}

	c, err := s.contacts.GetByID(ctx, in.ContactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if c.Address(ch) == "" {
		return nil, invalid("contact", "has no address for channel "+ch.String())
	}

	sc := model.Schedule{
		ID:         util.NewID(),
		ContactID:  in.ContactID,
		Channel:    ch,
		Subject:    in.Subject,
		Body:       in.Body,
		SendAt:     in.SendAt.UTC(),
		Recurrence: rec,
		EndDate:    in.EndDate,
		Status:     model.SchedulePending,
	}

	if err := s.schedules.Create(ctx, sc); err != nil {
		return nil, err
	}

	metrics.SchedulesCreatedTotal.WithLabelValues(ch.String(), rec.String()).Inc()
	s.log.Info("schedule created",
		zap.String("id", sc.ID),
		zap.Int64("contact_id", sc.ContactID),
		zap.String("channel", ch.String()),
		zap.String("recurrence", rec.String()),
	)
	return &sc, nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (*model.Schedule, error) {
	sc, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, ErrNotFound
	}
	return sc, nil
}

func (s *ScheduleService) List(ctx context.Context, contactID int64, status model.ScheduleStatus, limit, offset int) ([]model.Schedule, error) {
	return s.schedules.List(ctx, contactID, status, limit, offset)
}

// Cancel transitions pending -> cancelled. The conditional update means an
// in-flight delivery attempt cannot resurrect the schedule afterwards: the
// attempt's own conditional write will find the row no longer pending.
func (s *ScheduleService) Cancel(ctx context.Context, id string) error {
	won, err := s.schedules.CancelIf(ctx, id)
	if err != nil {
		return err
	}
	if won {
		s.log.Info("schedule cancelled", zap.String("id", id))
		return nil
	}

	sc, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sc == nil {
		return ErrNotFound
	}
	return ErrTerminalState
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
