package period

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/logger"
	"github.com/jordanlanch/taxpipe/pkg/metrics"
	"github.com/jordanlanch/taxpipe/pkg/models"
	"github.com/jordanlanch/taxpipe/pkg/verification"
)

// Config holds the period builder's selection thresholds.
type Config struct {
	// PaymentCeiling skips clients whose total payments already exceed this.
	PaymentCeiling float64
	// InvoiceRecency skips clients invoiced within this trailing window.
	InvoiceRecency time.Duration
	// InvoiceFloor skips clients whose last invoice amount sits below this
	// (large negative amounts are credits/refunds, not billable work).
	InvoiceFloor float64
	// Cooldown is how many recent periods for the same stage are consulted for
	// cross-period de-duplication.
	Cooldown int
}

// DefaultConfig returns the production selection thresholds.
func DefaultConfig() Config {
	return Config{
		PaymentCeiling: 50000,
		InvoiceRecency: 60 * 24 * time.Hour,
		InvoiceFloor:   -2000,
		Cooldown:       4,
	}
}

// Result reports what one period build selected and why the rest were skipped.
// Skip reasons stay local to the run; only gate flags persist on the client.
type Result struct {
	Period      *models.PeriodContacts `json:"period"`
	Accepted    []string               `json:"accepted"`
	SkipReasons []string               `json:"skip_reasons"`
	ToReview    []*models.ClientRecord `json:"to_review"`
}

// Builder runs the lower-frequency selection pass that admits create-date
// clients into a new named period for one stage.
type Builder struct {
	clients domain.ClientStore
	periods domain.PeriodStore
	gate    *verification.Gate
	cfg     Config
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewBuilder creates a period builder.
func NewBuilder(clients domain.ClientStore, periods domain.PeriodStore, gate *verification.Gate, cfg Config, m *metrics.Metrics, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Default()
	}
	return &Builder{clients: clients, periods: periods, gate: gate, cfg: cfg, metrics: m, log: log}
}

// BuildPeriod selects clients for a new period of the given stage. The period
// starts tomorrow, giving a full day's lead before the daily builder acts on
// it.
func (b *Builder) BuildPeriod(ctx context.Context, stage models.Stage, now time.Time) (*Result, error) {
	candidates, err := b.clients.ListCreateDateClients(ctx,
		[]models.Status{models.StatusActive, models.StatusPartial})
	if err != nil {
		return nil, fmt.Errorf("failed to list create-date clients: %w", err)
	}

	recent, err := b.periods.ListRecent(ctx, stage, b.cfg.Cooldown)
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load recent periods: %w", err)
	}

	result := &Result{}
	var accepted []string

	for _, c := range candidates {
		if reason := b.skipReason(c, stage, recent, now); reason != "" {
			result.SkipReasons = append(result.SkipReasons,
				fmt.Sprintf("%s: %s", c.CaseNumber, reason))
			continue
		}

		b.gate.Verify(ctx, c)
		if c.InReview() {
			result.ToReview = append(result.ToReview, c)
			if err := b.clients.Upsert(ctx, c); err != nil {
				return result, fmt.Errorf("failed to persist flagged client %s: %w", c.CaseNumber, err)
			}
			continue
		}
		// Admission into a new period re-arms the once-per-period contact gate.
		c.ContactedThisPeriod = false
		if err := b.clients.Upsert(ctx, c); err != nil {
			return result, fmt.Errorf("failed to persist client %s: %w", c.CaseNumber, err)
		}
		accepted = append(accepted, c.CaseNumber)
	}

	if len(accepted) == 0 {
		b.log.Info("period build selected no clients", "stage", string(stage))
		result.Accepted = []string{}
		return result, nil
	}

	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	created, err := b.periods.CreatePeriod(ctx, &models.PeriodContacts{
		CreateDateStage:     stage,
		PeriodStartDate:     tomorrow,
		CreateDateClientIDs: accepted,
		CreatedAt:           now,
	})
	if err != nil {
		return result, fmt.Errorf("failed to create period: %w", err)
	}

	result.Period = created
	result.Accepted = accepted
	if b.metrics != nil {
		b.metrics.PeriodsBuilt.Inc()
	}
	b.log.Info("period created",
		"stage", string(stage),
		"start", tomorrow.Format("2006-01-02"),
		"members", len(accepted),
		"skipped", len(result.SkipReasons),
		"review", len(result.ToReview))
	return result, nil
}

// skipReason applies the static business filters in order and returns the
// first disqualifying reason, or "" when the client passes them all.
func (b *Builder) skipReason(c *models.ClientRecord, stage models.Stage, recent []*models.PeriodContacts, now time.Time) string {
	if c.TotalPayment != nil && *c.TotalPayment > b.cfg.PaymentCeiling {
		return fmt.Sprintf("total payments %g exceed ceiling %g", *c.TotalPayment, b.cfg.PaymentCeiling)
	}
	if c.LastInvoiceDate != nil && now.Sub(*c.LastInvoiceDate) < b.cfg.InvoiceRecency {
		return fmt.Sprintf("lastInvoiceDate within %d days", int(b.cfg.InvoiceRecency.Hours()/24))
	}
	if c.LastInvoiceAmount != nil && *c.LastInvoiceAmount < b.cfg.InvoiceFloor {
		return fmt.Sprintf("last invoice amount %g below floor %g", *c.LastInvoiceAmount, b.cfg.InvoiceFloor)
	}
	if c.HasStage(stage) {
		return fmt.Sprintf("stage %s already received", stage)
	}
	for _, p := range recent {
		if p.HasContacted(c.CaseNumber) {
			return fmt.Sprintf("contacted in recent %s period starting %s",
				stage, p.PeriodStartDate.Format("2006-01-02"))
		}
	}
	return ""
}
