package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/taxpipe/pkg/cadence"
	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/logger"
	"github.com/jordanlanch/taxpipe/pkg/metrics"
	"github.com/jordanlanch/taxpipe/pkg/models"
	"github.com/jordanlanch/taxpipe/pkg/phone"
	"github.com/jordanlanch/taxpipe/pkg/verification"
)

// Config holds the builder's business knobs.
type Config struct {
	// SaleWindow is the trailing window inside which a sale client is still a
	// daily candidate.
	SaleWindow time.Duration
	// Pace caps how many texts the dispatcher releases per tick; it is stamped
	// onto each new schedule.
	Pace int
	// RepeatExempt stages may receive the same piece more than once.
	RepeatExempt map[models.Stage]bool
	// PhoneRegion is the default region for cell normalization.
	PhoneRegion string
}

// DefaultConfig returns the production builder configuration.
func DefaultConfig() Config {
	return Config{
		SaleWindow:   60 * 24 * time.Hour,
		Pace:         25,
		RepeatExempt: cadence.DefaultRepeatExempt,
		PhoneRegion:  "US",
	}
}

// BuildResult is what one daily build produced. The caller dispatches the
// queues and surfaces the review list; the builder only decides and persists.
type BuildResult struct {
	Date       time.Time             `json:"date"`
	EmailQueue []models.QueueEntry   `json:"email_queue"`
	TextQueue  []models.QueueEntry   `json:"text_queue"`
	ToReview   []*models.ClientRecord `json:"to_review"`
	Candidates int                   `json:"candidates"`
	Skipped    int                   `json:"skipped"`
}

// Builder assembles one day's email and text queues: it gathers candidates,
// gates them, resolves each survivor's cadence step, and persists the result.
type Builder struct {
	clients   domain.ClientStore
	schedules domain.ScheduleStore
	periods   domain.PeriodStore
	gate      *verification.Gate
	table     cadence.Table
	cfg       Config
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewBuilder creates a daily queue builder.
func NewBuilder(
	clients domain.ClientStore,
	schedules domain.ScheduleStore,
	periods domain.PeriodStore,
	gate *verification.Gate,
	table cadence.Table,
	cfg Config,
	m *metrics.Metrics,
	log logger.Logger,
) *Builder {
	if log == nil {
		log = logger.Default()
	}
	return &Builder{
		clients:   clients,
		schedules: schedules,
		periods:   periods,
		gate:      gate,
		table:     table,
		cfg:       cfg,
		metrics:   m,
		log:       log,
	}
}

// BuildDaily runs the whole daily pipeline for the date of now. Re-invocation
// on the same date is safe: queue appends de-duplicate against persisted state
// and client updates are upserts.
func (b *Builder) BuildDaily(ctx context.Context, now time.Time) (*BuildResult, error) {
	started := time.Now()
	today := truncateDay(now)

	sched, err := b.ensureSchedule(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure schedule for %s: %w", today.Format("2006-01-02"), err)
	}

	result := &BuildResult{Date: today}

	period, err := b.periods.Latest(ctx)
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load current period: %w", err)
	}

	saleClients, err := b.clients.ListSaleClients(ctx,
		[]models.Status{models.StatusActive, models.StatusPartial},
		today.Add(-b.cfg.SaleWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list sale clients: %w", err)
	}

	var periodClients []*models.ClientRecord
	if period != nil {
		periodClients, err = b.clients.ListByCaseNumbers(ctx, period.CreateDateClientIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve period members: %w", err)
		}
	}

	result.Candidates = len(saleClients) + len(periodClients)

	var emails, texts []models.QueueEntry
	var touched []*models.ClientRecord
	survivorIDs := make([]string, 0, len(periodClients))
	contactedIDs := map[string]bool{}
	if period != nil {
		for _, id := range period.ContactedClientIDs {
			contactedIDs[id] = true
		}
	}

	process := func(c *models.ClientRecord, lc cadence.Lifecycle) {
		// Stale token first: no amount of re-verification fixes a dead link.
		if c.TokenExpired(now) {
			c.FlagForReview(fmt.Sprintf("scheduling token expired %s",
				c.TokenExpiresAt.Format("Jan 2, 2006")), now)
			result.ToReview = append(result.ToReview, c)
			touched = append(touched, c)
			return
		}

		b.gate.Verify(ctx, c)
		if b.metrics != nil {
			b.metrics.ClientsVerified.Inc()
		}
		if c.InReview() {
			if b.metrics != nil {
				b.metrics.ClientsFlagged.Inc()
			}
			result.ToReview = append(result.ToReview, c)
			touched = append(touched, c)
			return
		}

		entry, step := b.resolveStep(c, lc, period, today, now)
		if c.InReview() {
			// resolveStep can flag (bad cell number).
			result.ToReview = append(result.ToReview, c)
			touched = append(touched, c)
			return
		}
		// Only unflagged members stay in the period's working set.
		if lc == cadence.LifecycleCreateDate {
			survivorIDs = append(survivorIDs, c.CaseNumber)
		}
		if entry == nil {
			result.Skipped++
			return
		}

		if sched.InQueue(step.ContactType, c.CaseNumber) {
			result.Skipped++
			return
		}

		if step.ContactType == models.ContactEmail {
			emails = append(emails, *entry)
		} else {
			texts = append(texts, *entry)
		}
		sched.EmailQueue = appendIf(sched.EmailQueue, *entry, step.ContactType == models.ContactEmail)
		sched.TextQueue = appendIf(sched.TextQueue, *entry, step.ContactType == models.ContactText)

		contactedAt := now
		c.AddStageReceived(c.Stage)
		c.AddPiece(step.StagePiece)
		c.LastContactDate = &contactedAt
		if lc == cadence.LifecycleCreateDate {
			c.ContactedThisPeriod = true
			contactedIDs[c.CaseNumber] = true
		}
		touched = append(touched, c)
	}

	for _, c := range saleClients {
		process(c, cadence.LifecycleSale)
	}
	for _, c := range periodClients {
		process(c, cadence.LifecycleCreateDate)
	}

	if len(emails) > 0 || len(texts) > 0 {
		if err := b.schedules.AppendEntries(ctx, today, emails, texts); err != nil {
			return nil, fmt.Errorf("failed to append queue entries: %w", err)
		}
	}

	for _, c := range touched {
		if err := b.clients.Upsert(ctx, c); err != nil {
			// Persistence failures surface to the caller; the day can be
			// safely re-run because every write is an upsert.
			return result, fmt.Errorf("failed to persist client %s: %w", c.CaseNumber, err)
		}
	}

	if period != nil {
		contacted := make([]string, 0, len(contactedIDs))
		for id := range contactedIDs {
			contacted = append(contacted, id)
		}
		if err := b.periods.UpdateMembers(ctx, period.ID, survivorIDs, contacted); err != nil {
			return result, fmt.Errorf("failed to update period members: %w", err)
		}
	}

	result.EmailQueue = emails
	result.TextQueue = texts

	if b.metrics != nil {
		b.metrics.EmailsQueued.Add(float64(len(emails)))
		b.metrics.TextsQueued.Add(float64(len(texts)))
		b.metrics.BuildDuration.Observe(time.Since(started).Seconds())
	}
	b.log.Info("daily build complete",
		"date", today.Format("2006-01-02"),
		"candidates", result.Candidates,
		"emails", len(emails),
		"texts", len(texts),
		"review", len(result.ToReview),
		"skipped", result.Skipped)

	return result, nil
}

// ensureSchedule loads today's schedule, creating it with yesterday's
// undelivered texts at the head of the queue when it does not exist yet.
func (b *Builder) ensureSchedule(ctx context.Context, today time.Time) (*models.DailySchedule, error) {
	sched, err := b.schedules.GetByDate(ctx, today)
	if err == nil {
		return sched, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	sched = &models.DailySchedule{Date: today, Pace: b.cfg.Pace}

	yesterday, err := b.schedules.GetByDate(ctx, today.AddDate(0, 0, -1))
	if err == nil {
		leftover := yesterday.UndeliveredTexts()
		if len(leftover) > 0 {
			b.log.Info("carrying over undelivered texts", "count", len(leftover))
			sched.TextQueue = leftover
		}
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	if err := b.schedules.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// resolveStep computes the client's day offset, looks up the cadence step, and
// applies the per-client suppressions. A nil return with the client unflagged
// means "nothing for this client today".
func (b *Builder) resolveStep(
	c *models.ClientRecord,
	lc cadence.Lifecycle,
	period *models.PeriodContacts,
	today time.Time,
	now time.Time,
) (*models.QueueEntry, *cadence.Step) {
	var base time.Time
	switch lc {
	case cadence.LifecycleSale:
		base = *c.SaleDate
		if c.Stage == models.StageUpdate433A && c.SecondPaymentDate != nil {
			base = *c.SecondPaymentDate
		}
	case cadence.LifecycleCreateDate:
		if period == nil {
			return nil, nil
		}
		base = period.PeriodStartDate
	}

	daysOut := int(today.Sub(truncateDay(base)).Hours() / 24)
	step := b.table.Lookup(lc, c.Stage, daysOut)
	if step == nil {
		return nil, nil
	}

	if lc == cadence.LifecycleCreateDate && c.ContactedThisPeriod {
		return nil, nil
	}
	if c.HasPiece(step.StagePiece) && !b.cfg.RepeatExempt[c.Stage] {
		return nil, nil
	}

	entry := models.QueueEntry{
		Name:        c.Name,
		CaseNumber:  c.CaseNumber,
		Domain:      c.Domain,
		StagePiece:  step.StagePiece,
		ContactType: step.ContactType,
		Token:       c.Token,
	}

	switch step.ContactType {
	case models.ContactEmail:
		entry.Address = c.Email
	case models.ContactText:
		cell, err := phone.Normalize(c.Cell, b.cfg.PhoneRegion)
		if err != nil {
			c.FlagForReview(fmt.Sprintf("unusable cell number %q: %v", c.Cell, err), now)
			return nil, nil
		}
		entry.Address = cell
	}

	return &entry, step
}

func appendIf(queue []models.QueueEntry, e models.QueueEntry, ok bool) []models.QueueEntry {
	if !ok {
		return queue
	}
	return append(queue, e)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
