package crm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/metrics"
	"github.com/JackBungart/perceptive-crm/internal/model"
	"github.com/JackBungart/perceptive-crm/internal/repository"
	"github.com/JackBungart/perceptive-crm/internal/summary"
	"github.com/JackBungart/perceptive-crm/internal/util"
)

const recentHistoryDepth = 5

// ContactService owns contact CRUD and the pipeline-change path: any write
// to the pipeline fields or rating regenerates summary_text synchronously,
// so the caller observes the new summary when the call returns.
type ContactService struct {
	contacts repository.ContactsRepository
	history  repository.MessagesRepository
	outbox   repository.OutboxRepository
	renderer summary.Renderer
	log      *zap.Logger
	now      func() time.Time
}

func NewContactService(
	contacts repository.ContactsRepository,
	history repository.MessagesRepository,
	outbox repository.OutboxRepository,
	renderer summary.Renderer,
	log *zap.Logger,
	now func() time.Time,
) *ContactService {
	if now == nil {
		now = time.Now
	}
	return &ContactService{
		contacts: contacts,
		history:  history,
		outbox:   outbox,
		renderer: renderer,
		log:      log,
		now:      now,
	}
}

type ContactInput struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Company   string          `json:"company"`
	Notes     string          `json:"notes"`
	Pipeline  *model.Pipeline `json:"pipeline,omitempty"`
}

func validatePipeline(p model.Pipeline) error {
	for _, f := range []struct {
		name   string
		amount decimal.Decimal
	}{
		{"potential_amount", p.PotentialAmount},
		{"accepted_amount", p.AcceptedAmount},
		{"billed_amount", p.BilledAmount},
		{"received_amount", p.ReceivedAmount},
	} {
		if f.amount.IsNegative() {
			return invalid(f.name, "must not be negative")
		}
	}
	if p.Rating < 0 || p.Rating > 10 {
		return invalid("rating", "must be between 0 and 10")
	}
	return nil
}

func (s *ContactService) Create(ctx context.Context, in ContactInput) (*model.Contact, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)

	if in.FirstName == "" || in.LastName == "" {
		return nil, invalid("name", "first and last name are required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, invalid("email", "a valid email is required")
	}

	exists, err := s.contacts.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	c := model.Contact{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     util.NormalizePhone(in.Phone),
		Company:   strings.TrimSpace(in.Company),
		Notes:     in.Notes,
	}
	if in.Pipeline != nil {
		if err := validatePipeline(*in.Pipeline); err != nil {
			return nil, err
		}
		c.Pipeline = *in.Pipeline
	}

	// Initial summary from the creation-time snapshot.
	if text, rerr := s.renderer.Render(c, nil); rerr == nil {
		c.SummaryText = text
	} else {
		metrics.SummaryRegenTotal.WithLabelValues("error").Inc()
		s.log.Warn("initial summary render failed", zap.Error(rerr))
	}

	id, err := s.contacts.Create(ctx, &c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

func (s *ContactService) Get(ctx context.Context, id int64) (*model.Contact, error) {
	c, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *ContactService) List(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	return s.contacts.List(ctx, limit, offset)
}

// UpdatePipeline rewrites the pipeline fields and regenerates the summary in
// the same transaction. A render failure never blocks the field write: the
// prior summary stays in place until the next successful regeneration.
func (s *ContactService) UpdatePipeline(ctx context.Context, id int64, p model.Pipeline) (*model.Contact, error) {
	if err := validatePipeline(p); err != nil {
		return nil, err
	}

	c, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}

	c.Pipeline = p

	var summaryPtr *string
	if text, rerr := s.regenerate(ctx, *c); rerr == nil {
		summaryPtr = &text
	} else {
		metrics.SummaryRegenTotal.WithLabelValues("error").Inc()
		s.log.Warn("summary regeneration failed, keeping prior summary",
			zap.Int64("contact_id", id), zap.Error(rerr))
	}

	if err := s.contacts.ApplyPipeline(ctx, id, p, summaryPtr); err != nil {
		return nil, err
	}
	if summaryPtr != nil {
		metrics.SummaryRegenTotal.WithLabelValues("ok").Inc()
		c.SummaryText = *summaryPtr
	}

	s.emitPipelineChanged(ctx, id, p)

	return c, nil
}

// RegenerateSummary is the manual, on-demand path.
func (s *ContactService) RegenerateSummary(ctx context.Context, id int64) (string, error) {
	c, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", ErrNotFound
	}

	text, err := s.regenerate(ctx, *c)
	if err != nil {
		metrics.SummaryRegenTotal.WithLabelValues("error").Inc()
		return "", err
	}

	if err := s.contacts.UpdateSummary(ctx, id, text); err != nil {
		return "", err
	}
	metrics.SummaryRegenTotal.WithLabelValues("ok").Inc()
	return text, nil
}

func (s *ContactService) regenerate(ctx context.Context, c model.Contact) (string, error) {
	recent, err := s.history.ListRecent(ctx, c.ID, recentHistoryDepth)
	if err != nil {
		// summary still renders without history
		s.log.Warn("history read failed during summary render",
			zap.Int64("contact_id", c.ID), zap.Error(err))
		recent = nil
	}
	return s.renderer.Render(c, recent)
}

// emitPipelineChanged records the change event; the relay worker publishes
// it. Event loss is tolerable, so failures only log.
func (s *ContactService) emitPipelineChanged(ctx context.Context, id int64, p model.Pipeline) {
	if s.outbox == nil {
		return
	}
	ev := model.PipelineChangedEvent{ContactID: id, Pipeline: p, OccurredAt: s.now().UTC()}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("marshal pipeline event", zap.Error(err))
		return
	}
	if err := s.outbox.Insert(ctx, "contact", itoa(id), model.PipelineChangedTopic, payload); err != nil {
		s.log.Warn("insert pipeline event", zap.Int64("contact_id", id), zap.Error(err))
	}
}
