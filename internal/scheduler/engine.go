// Package scheduler implements the dispatch engine: the periodic sweep that
// turns pending schedules into delivered messages.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/gateway"
	"github.com/JackBungart/perceptive-crm/internal/metrics"
	"github.com/JackBungart/perceptive-crm/internal/model"
	"github.com/JackBungart/perceptive-crm/internal/template"
	"github.com/JackBungart/perceptive-crm/internal/util"
)

// ScheduleStore is the slice of the schedules repository the engine needs.
// Every transition is conditional on the row still being pending; a lost
// update means another worker (or a cancel) won and the engine moves on.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Schedule, error)
	CompleteIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error)
	FailIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error)
	RescheduleIf(ctx context.Context, id string, next time.Time, at time.Time) (bool, error)
	RecordAttemptIf(ctx context.Context, id string, attempts int, at time.Time) (bool, error)
}

type ContactSource interface {
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
}

type HistorySink interface {
	Record(ctx context.Context, m model.Message) error
}

type EventSink interface {
	Insert(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error
}

type AttemptArchive interface {
	InsertBatch(ctx context.Context, rows []model.DeliveryAttempt) error
}

type Config struct {
	BatchSize      int
	WorkerCount    int
	RetryLimit     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	GatewayTimeout time.Duration
}

// Engine runs the due-message sweep. It never reads the system clock: Run is
// driven by a ticker but stamps every sweep with the injected now function,
// and RunDue takes now explicitly so tests can simulate time.
type Engine struct {
	store    ScheduleStore
	contacts ContactSource
	history  HistorySink
	events   EventSink      // optional
	archive  AttemptArchive // optional, best-effort
	gw       gateway.Gateway
	log      *zap.Logger
	cfg      Config
}

func NewEngine(
	store ScheduleStore,
	contacts ContactSource,
	history HistorySink,
	events EventSink,
	archive AttemptArchive,
	gw gateway.Gateway,
	log *zap.Logger,
	cfg Config,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 5
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &Engine{
		store:    store,
		contacts: contacts,
		history:  history,
		events:   events,
		archive:  archive,
		gw:       gw,
		log:      log,
		cfg:      cfg,
	}
}

// Run drives RunDue on the given tick until ctx is cancelled. now supplies
// the sweep timestamp.
func (e *Engine) Run(ctx context.Context, tick time.Duration, now func() time.Time) error {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}

	t := time.NewTicker(tick)
	defer t.Stop()

	// immediate first sweep picks up anything overdue from downtime
	e.RunDue(ctx, now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.RunDue(ctx, now())
		}
	}
}

type SweepStats struct {
	Due     int
	Sent    int
	Failed  int
	Retried int
	Skipped int
}

// RunDue performs one sweep at the given instant. One message's failure
// never aborts the sweep for the others.
func (e *Engine) RunDue(ctx context.Context, now time.Time) SweepStats {
	var stats SweepStats

	due, err := e.store.ListDue(ctx, now, e.cfg.BatchSize)
	if err != nil {
		e.log.Error("list due schedules", zap.Error(err))
		return stats
	}
	stats.Due = len(due)
	if len(due) == 0 {
		return stats
	}

	var (
		mu       sync.Mutex
		attempts []model.DeliveryAttempt
	)

	jobs := make(chan model.Schedule)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sc := range jobs {
				outcome, attempt := e.processOne(ctx, sc, now)
				mu.Lock()
				switch outcome {
				case outcomeSent:
					stats.Sent++
				case outcomeFailed:
					stats.Failed++
				case outcomeRetry:
					stats.Retried++
				default:
					stats.Skipped++
				}
				if attempt != nil {
					attempts = append(attempts, *attempt)
				}
				mu.Unlock()
			}
		}()
	}

	for _, sc := range due {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return stats
		case jobs <- sc:
		}
	}
	close(jobs)
	wg.Wait()

	if e.archive != nil && len(attempts) > 0 {
		if err := e.archive.InsertBatch(ctx, attempts); err != nil {
			e.log.Warn("archive delivery attempts", zap.Error(err))
		}
	}

	e.log.Info("sweep complete",
		zap.Int("due", stats.Due),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("retried", stats.Retried),
		zap.Int("skipped", stats.Skipped),
	)
	return stats
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
	outcomeRetry
)

func (e *Engine) processOne(ctx context.Context, sc model.Schedule, now time.Time) (outcome, *model.DeliveryAttempt) {
	// capped exponential backoff between retries of the same occurrence
	if sc.AttemptCount > 0 && sc.LastAttemptAt != nil {
		wait := RetryBackoff(sc.AttemptCount, e.cfg.BackoffBase, e.cfg.BackoffCap)
		if now.Before(sc.LastAttemptAt.Add(wait)) {
			return outcomeSkipped, nil
		}
	}

	c, err := e.contacts.GetByID(ctx, sc.ContactID)
	if err != nil {
		// store hiccup: not a delivery attempt, retry on a later sweep
		e.log.Warn("load contact", zap.String("schedule_id", sc.ID), zap.Error(err))
		return outcomeSkipped, nil
	}

	attempt := sc.AttemptCount + 1

	if c == nil || c.Address(sc.Channel) == "" {
		return e.finishFailure(ctx, sc, attempt, now, &gateway.SendError{
			Reason:  gateway.ReasonInvalidAddress,
			Channel: sc.Channel,
		})
	}

	subject := template.Personalize(sc.Subject, *c)
	body := template.Personalize(sc.Body, *c)

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	err = e.gw.Send(sendCtx, sc.Channel, c.Address(sc.Channel), subject, body)
	cancel()

	if err != nil {
		var serr *gateway.SendError
		if !errors.As(err, &serr) {
			serr = &gateway.SendError{Reason: gateway.ReasonTransportError, Channel: sc.Channel, Err: err}
		}
		return e.finishFailure(ctx, sc, attempt, now, serr)
	}

	return e.finishSuccess(ctx, sc, c, attempt, now, subject, body)
}

func (e *Engine) finishSuccess(ctx context.Context, sc model.Schedule, c *model.Contact, attempt int, now time.Time, subject, body string) (outcome, *model.DeliveryAttempt) {
	var (
		won bool
		err error
	)

	if sc.Recurrence == model.RecurrenceDaily {
		next := sc.NextOccurrence()
		if sc.SeriesComplete(next) {
			won, err = e.store.CompleteIf(ctx, sc.ID, attempt, now)
		} else {
			won, err = e.store.RescheduleIf(ctx, sc.ID, next, now)
		}
	} else {
		won, err = e.store.CompleteIf(ctx, sc.ID, attempt, now)
	}
	if err != nil {
		e.log.Error("record delivery result", zap.String("schedule_id", sc.ID), zap.Error(err))
		return outcomeSkipped, nil
	}

	arch := &model.DeliveryAttempt{
		ScheduleID: sc.ID,
		ContactID:  sc.ContactID,
		Channel:    sc.Channel,
		Outcome:    "sent",
		Attempt:    attempt,
		OccurredAt: now.UTC(),
	}

	if !won {
		// lost the conditional write: cancelled (or claimed) between read and
		// write. The message went out, which at-least-once permits, but the
		// terminal state stands.
		e.log.Debug("conditional update lost, skipping", zap.String("schedule_id", sc.ID))
		return outcomeSkipped, arch
	}

	metrics.DeliveriesTotal.WithLabelValues(sc.Channel.String(), "sent").Inc()

	if err := e.history.Record(ctx, model.Message{
		ID:         util.NewID(),
		ScheduleID: sc.ID,
		ContactID:  sc.ContactID,
		Channel:    sc.Channel,
		Subject:    subject,
		Body:       body,
		SentAt:     now.UTC(),
	}); err != nil {
		e.log.Warn("record message history", zap.String("schedule_id", sc.ID), zap.Error(err))
	}

	e.emitDeliveryEvent(ctx, sc, "sent", "", attempt, now)
	return outcomeSent, arch
}

func (e *Engine) finishFailure(ctx context.Context, sc model.Schedule, attempt int, now time.Time, serr *gateway.SendError) (outcome, *model.DeliveryAttempt) {
	terminal := !serr.Retryable() || attempt >= e.cfg.RetryLimit

	arch := &model.DeliveryAttempt{
		ScheduleID: sc.ID,
		ContactID:  sc.ContactID,
		Channel:    sc.Channel,
		Outcome:    "failed",
		Reason:     string(serr.Reason),
		Attempt:    attempt,
		OccurredAt: now.UTC(),
	}

	var (
		won bool
		err error
	)
	if terminal {
		won, err = e.store.FailIf(ctx, sc.ID, attempt, now)
	} else {
		won, err = e.store.RecordAttemptIf(ctx, sc.ID, attempt, now)
	}
	if err != nil {
		e.log.Error("record delivery failure", zap.String("schedule_id", sc.ID), zap.Error(err))
		return outcomeSkipped, arch
	}
	if !won {
		e.log.Debug("conditional update lost, skipping", zap.String("schedule_id", sc.ID))
		return outcomeSkipped, arch
	}

	if terminal {
		metrics.DeliveriesTotal.WithLabelValues(sc.Channel.String(), "failed").Inc()
		e.log.Warn("schedule failed",
			zap.String("schedule_id", sc.ID),
			zap.String("reason", string(serr.Reason)),
			zap.Int("attempts", attempt),
		)
		e.emitDeliveryEvent(ctx, sc, "failed", string(serr.Reason), attempt, now)
		return outcomeFailed, arch
	}

	metrics.DeliveriesTotal.WithLabelValues(sc.Channel.String(), "retry").Inc()
	e.log.Info("delivery attempt failed, will retry",
		zap.String("schedule_id", sc.ID),
		zap.String("reason", string(serr.Reason)),
		zap.Int("attempt", attempt),
	)
	return outcomeRetry, arch
}

func (e *Engine) emitDeliveryEvent(ctx context.Context, sc model.Schedule, out, reason string, attempt int, now time.Time) {
	if e.events == nil {
		return
	}
	ev := model.DeliveryEvent{
		ScheduleID: sc.ID,
		ContactID:  sc.ContactID,
		Channel:    sc.Channel,
		Outcome:    out,
		Reason:     reason,
		Attempt:    attempt,
		OccurredAt: now.UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.events.Insert(ctx, "schedule", sc.ID, model.DeliveriesTopic, payload); err != nil {
		e.log.Warn("insert delivery event", zap.String("schedule_id", sc.ID), zap.Error(err))
	}
}
