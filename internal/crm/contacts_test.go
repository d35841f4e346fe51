package crm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/model"
	"github.com/JackBungart/perceptive-crm/internal/summary"
)

// ---- mocks ----

type mockContacts struct {
	nextID   int64
	byID     map[int64]*model.Contact
	applyErr error
}

func newMockContacts(cs ...model.Contact) *mockContacts {
	m := &mockContacts{byID: map[int64]*model.Contact{}}
	for i := range cs {
		c := cs[i]
		m.byID[c.ID] = &c
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
	return m
}

func (m *mockContacts) Create(_ context.Context, c *model.Contact) (int64, error) {
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	m.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (m *mockContacts) GetByID(_ context.Context, id int64) (*model.Contact, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockContacts) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, c := range m.byID {
		if c.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockContacts) List(_ context.Context, _, _ int) ([]model.Contact, error) {
	var out []model.Contact
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockContacts) ApplyPipeline(_ context.Context, id int64, p model.Pipeline, summary *string) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	c, ok := m.byID[id]
	if !ok {
		return errors.New("no such contact")
	}
	c.Pipeline = p
	if summary != nil {
		c.SummaryText = *summary
	}
	return nil
}

func (m *mockContacts) UpdateSummary(_ context.Context, id int64, summary string) error {
	c, ok := m.byID[id]
	if !ok {
		return errors.New("no such contact")
	}
	c.SummaryText = summary
	return nil
}

type mockMessages struct {
	rows    []model.Message
	listErr error
}

func (m *mockMessages) Record(_ context.Context, msg model.Message) error {
	m.rows = append(m.rows, msg)
	return nil
}

func (m *mockMessages) ListRecent(_ context.Context, _ int64, _ int) ([]model.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rows, nil
}

type mockOutbox struct {
	topics []string
}

func (m *mockOutbox) Insert(_ context.Context, _, _, topic string, _ []byte) error {
	m.topics = append(m.topics, topic)
	return nil
}

func (m *mockOutbox) ListUnpublished(context.Context, int) ([]model.OutboxEvent, error) {
	return nil, nil
}

func (m *mockOutbox) MarkPublished(context.Context, []int64, time.Time) error { return nil }
func (m *mockOutbox) BumpAttempts(context.Context, []int64) error             { return nil }

type failRenderer struct{}

func (failRenderer) Render(model.Contact, []model.Message) (string, error) {
	return "", errors.New("template blew up")
}

// ---- helpers ----

func existingContact() model.Contact {
	return model.Contact{
		ID:        1,
		FirstName: "Ada",
		LastName:  "Nwosu",
		Email:     "ada@brightworks.example",
		Phone:     "+15550100",
		Pipeline: model.Pipeline{
			BilledAmount:   decimal.NewFromInt(5000),
			ReceivedAmount: decimal.NewFromInt(3500),
			Rating:         8,
		},
		SummaryText: "old summary",
	}
}

func newContactService(repo *mockContacts, history *mockMessages, r summary.Renderer) *ContactService {
	if history == nil {
		history = &mockMessages{}
	}
	if r == nil {
		r = summary.NewGenerator()
	}
	return NewContactService(repo, history, &mockOutbox{}, r, zap.NewNop(), nil)
}

// ---- tests ----

func TestCreateContactValidation(t *testing.T) {
	svc := newContactService(newMockContacts(), nil, nil)

	cases := []struct {
		name string
		in   ContactInput
	}{
		{"missing name", ContactInput{Email: "a@b.example"}},
		{"bad email", ContactInput{FirstName: "A", LastName: "B", Email: "nope"}},
		{"negative amount", ContactInput{
			FirstName: "A", LastName: "B", Email: "a@b.example",
			Pipeline: &model.Pipeline{BilledAmount: decimal.NewFromInt(-1)},
		}},
		{"rating too high", ContactInput{
			FirstName: "A", LastName: "B", Email: "a@b.example",
			Pipeline: &model.Pipeline{Rating: 11},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.in); !IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestCreateContactDuplicateEmail(t *testing.T) {
	svc := newContactService(newMockContacts(existingContact()), nil, nil)

	_, err := svc.Create(context.Background(), ContactInput{
		FirstName: "Other", LastName: "Person", Email: "ada@brightworks.example",
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestCreateContactSetsInitialSummary(t *testing.T) {
	svc := newContactService(newMockContacts(), nil, nil)

	c, err := svc.Create(context.Background(), ContactInput{
		FirstName: "Ada", LastName: "Nwosu", Email: "ada@brightworks.example",
		Phone: "(555) 010-0",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.SummaryText == "" {
		t.Error("new contact has no initial summary")
	}
	if c.Phone != "5550100" {
		t.Errorf("phone = %q, want normalized digits", c.Phone)
	}
}

func TestUpdatePipelineReadYourWrites(t *testing.T) {
	repo := newMockContacts(existingContact())
	svc := newContactService(repo, nil, nil)

	p := model.Pipeline{
		BilledAmount:   decimal.NewFromInt(5000),
		ReceivedAmount: decimal.NewFromInt(5000),
		Rating:         9,
	}
	c, err := svc.UpdatePipeline(context.Background(), 1, p)
	if err != nil {
		t.Fatalf("UpdatePipeline: %v", err)
	}

	// the returned contact already carries the regenerated summary
	if !strings.Contains(c.SummaryText, "Outstanding: $0.00") {
		t.Errorf("returned summary stale:\n%s", c.SummaryText)
	}

	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.SummaryText != c.SummaryText {
		t.Error("stored summary differs from the returned one")
	}
	if !stored.ReceivedAmount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("received_amount = %s, want 5000", stored.ReceivedAmount)
	}
}

func TestUpdatePipelineRenderFailureKeepsFieldWrite(t *testing.T) {
	repo := newMockContacts(existingContact())
	svc := newContactService(repo, nil, failRenderer{})

	p := model.Pipeline{Rating: 2}
	if _, err := svc.UpdatePipeline(context.Background(), 1, p); err != nil {
		t.Fatalf("UpdatePipeline returned %v, render failure must not block the write", err)
	}

	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.Rating != 2 {
		t.Errorf("rating = %d, want the field write to have landed", stored.Rating)
	}
	if stored.SummaryText != "old summary" {
		t.Errorf("summary = %q, want the prior summary kept", stored.SummaryText)
	}
}

func TestUpdatePipelineNotFound(t *testing.T) {
	svc := newContactService(newMockContacts(), nil, nil)
	_, err := svc.UpdatePipeline(context.Background(), 99, model.Pipeline{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePipelineToleratesHistoryReadFailure(t *testing.T) {
	repo := newMockContacts(existingContact())
	history := &mockMessages{listErr: errors.New("db down")}
	svc := newContactService(repo, history, nil)

	c, err := svc.UpdatePipeline(context.Background(), 1, model.Pipeline{Rating: 5})
	if err != nil {
		t.Fatalf("UpdatePipeline: %v", err)
	}
	if !strings.Contains(c.SummaryText, "Messages delivered: 0") {
		t.Errorf("summary should render without history:\n%s", c.SummaryText)
	}
}

func TestRegenerateSummaryPersists(t *testing.T) {
	repo := newMockContacts(existingContact())
	svc := newContactService(repo, nil, nil)

	text, err := svc.RegenerateSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("RegenerateSummary: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.SummaryText != text {
		t.Error("regenerated summary not persisted")
	}
}
