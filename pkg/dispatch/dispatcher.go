package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/logger"
	"github.com/jordanlanch/taxpipe/pkg/metrics"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

// Result reports what one dispatch pass delivered.
type Result struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Dispatcher drains a day's queues. Emails go out wholesale; texts are
// released at the schedule's pace per tick, which is why undelivered texts
// carry into the next day's schedule.
type Dispatcher struct {
	schedules domain.ScheduleStore
	emails    domain.EmailSender
	texts     domain.TextSender
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewDispatcher creates a queue dispatcher. textsPerSecond smooths the paced
// release inside a tick so the texting provider never sees a burst.
func NewDispatcher(
	schedules domain.ScheduleStore,
	emails domain.EmailSender,
	texts domain.TextSender,
	textsPerSecond float64,
	m *metrics.Metrics,
	log logger.Logger,
) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		schedules: schedules,
		emails:    emails,
		texts:     texts,
		limiter:   rate.NewLimiter(rate.Limit(textsPerSecond), 1),
		metrics:   m,
		log:       log,
	}
}

// DispatchEmails sends every undelivered email entry for the date.
func (d *Dispatcher) DispatchEmails(ctx context.Context, date time.Time) (*Result, error) {
	sched, err := d.schedules.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	result := &Result{}
	var sent []string
	for _, entry := range sched.EmailQueue {
		if entry.Delivered() {
			continue
		}
		if err := d.emails.Send(ctx, entry); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.CaseNumber, err))
			if d.metrics != nil {
				d.metrics.SendFailures.WithLabelValues("email").Inc()
			}
			continue
		}
		result.Sent++
		sent = append(sent, entry.CaseNumber)
		if d.metrics != nil {
			d.metrics.EmailsSent.Inc()
		}
	}

	if len(sent) > 0 {
		if err := d.schedules.MarkSent(ctx, date, models.ContactEmail, sent, time.Now()); err != nil {
			return result, fmt.Errorf("failed to mark emails sent: %w", err)
		}
	}

	d.log.Info("email dispatch complete", "date", date.Format("2006-01-02"),
		"sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// DispatchTexts releases at most the schedule's pace worth of undelivered
// texts, oldest first. Leftovers stay queued for the next tick or the next
// day's carry-over.
func (d *Dispatcher) DispatchTexts(ctx context.Context, date time.Time) (*Result, error) {
	sched, err := d.schedules.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	pace := sched.Pace
	if pace <= 0 {
		pace = 25
	}

	result := &Result{}
	var sent []string
	for _, entry := range sched.TextQueue {
		if result.Sent+result.Failed >= pace {
			break
		}
		if entry.Delivered() {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("dispatch interrupted: %w", err)
		}
		if err := d.texts.Send(ctx, entry); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.CaseNumber, err))
			if d.metrics != nil {
				d.metrics.SendFailures.WithLabelValues("text").Inc()
			}
			continue
		}
		result.Sent++
		sent = append(sent, entry.CaseNumber)
		if d.metrics != nil {
			d.metrics.TextsSent.Inc()
		}
	}

	if len(sent) > 0 {
		if err := d.schedules.MarkSent(ctx, date, models.ContactText, sent, time.Now()); err != nil {
			return result, fmt.Errorf("failed to mark texts sent: %w", err)
		}
	}

	d.log.Info("text dispatch complete", "date", date.Format("2006-01-02"),
		"sent", result.Sent, "failed", result.Failed)
	return result, nil
}
