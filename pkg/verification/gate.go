package verification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/logger"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

// Config parameterizes the gate. The historical implementations disagreed on
// thresholds and on which optional checks ran, so every knob lives here and
// each call site picks its own profile.
type Config struct {
	// PaymentCeiling flags clients whose total payments climb past this.
	PaymentCeiling float64
	// ReviewOnPaymentDrop flags a decrease in total paid amount (refund signal).
	ReviewOnPaymentDrop bool
	// ConversionTolerance suppresses "status changed" notes written this close
	// to a "converted from prospect" activity; the conversion writes one
	// automatically and it is not a human edit.
	ConversionTolerance time.Duration
	// MatchStatusTiers enables tier classification of explicit
	// "status changed from X to Y" activities (strict profile only).
	MatchStatusTiers bool
	// Tier4Window bounds how far back a tier-4 transition still matters.
	Tier4Window time.Duration
	// DoNotContactPhrases disqualify immediately, regardless of timestamp
	// (strict profile only; empty set disables the scan).
	DoNotContactPhrases []string
}

// DefaultConfig is the lenient profile the daily pipeline runs.
func DefaultConfig() Config {
	return Config{
		PaymentCeiling:      50000,
		ReviewOnPaymentDrop: true,
		ConversionTolerance: time.Second,
	}
}

// StrictConfig is the list-level quick-filter profile: tier matching plus the
// explicit do-not-contact phrase scan.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.MatchStatusTiers = true
	cfg.Tier4Window = 30 * 24 * time.Hour
	cfg.DoNotContactPhrases = []string{"do not contact", "opt out", "client hung up", "no a/s"}
	return cfg
}

// Gate re-validates a client's cached campaign state against the case API and
// flags the client for human review when the two disagree. It mutates the
// record it is given; callers branch on InReview afterward.
type Gate struct {
	provider domain.CaseDataProvider
	cfg      Config
	log      logger.Logger
	now      func() time.Time
}

// NewGate creates a verification gate.
func NewGate(provider domain.CaseDataProvider, cfg Config, log logger.Logger) *Gate {
	if log == nil {
		log = logger.Default()
	}
	return &Gate{provider: provider, cfg: cfg, log: log, now: time.Now}
}

// WithClock overrides the gate's clock. Tests only.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Verify runs the three checks in order: invoices, billing, activity. The
// checks do not short-circuit; a client can accumulate several reasons in one
// pass. A fetch failure flags this client and moves on, never the batch.
func (g *Gate) Verify(ctx context.Context, c *models.ClientRecord) *models.ClientRecord {
	g.checkInvoices(ctx, c)
	g.checkBilling(ctx, c)
	g.checkActivities(ctx, c)
	return c
}

// checkInvoices compares the cached invoice count and last amount against a
// fresh fetch. First-ever observation seeds the snapshot instead of comparing;
// afterward the snapshot always tracks the latest fetch so detection is
// one-step, not cumulative.
func (g *Gate) checkInvoices(ctx context.Context, c *models.ClientRecord) {
	invoices, err := g.provider.FetchInvoices(ctx, c.Domain, c.CaseNumber)
	if err != nil {
		g.logFetchFailure("invoice", c, err)
		c.FlagForReview(fmt.Sprintf("invoice check failed: %v", err), g.now())
		return
	}
	if len(invoices) == 0 {
		c.FlagForReview("invoice check failed: no invoices on file", g.now())
		return
	}

	count := len(invoices)
	lastAmount := invoices[count-1].Amount

	var since time.Time
	var lastInvoiceDate time.Time
	for _, inv := range invoices {
		ts := inv.CreatedDate
		if inv.ModifiedDate != nil && inv.ModifiedDate.After(ts) {
			ts = *inv.ModifiedDate
		}
		if ts.After(since) {
			since = ts
		}
		if inv.CreatedDate.After(lastInvoiceDate) {
			lastInvoiceDate = inv.CreatedDate
		}
	}
	c.SinceDate = &since
	c.LastInvoiceDate = &lastInvoiceDate

	if c.InvoiceCount == nil {
		// First run: seed, never compare.
		c.InvoiceCount = &count
		c.LastInvoiceAmount = &lastAmount
		if c.InitialPayment == nil {
			first := invoices[0].Amount
			c.InitialPayment = &first
		}
		return
	}

	if *c.InvoiceCount != count || *c.LastInvoiceAmount != lastAmount {
		c.FlagForReview(fmt.Sprintf("invoice mismatch: count %d->%d, amount %g->%g",
			*c.InvoiceCount, count, *c.LastInvoiceAmount, lastAmount), g.now())
	}

	// Next cycle compares against this cycle, not a stale baseline.
	c.InvoiceCount = &count
	c.LastInvoiceAmount = &lastAmount
}

// checkBilling flags past-due balances and total-payment drift.
func (g *Gate) checkBilling(ctx context.Context, c *models.ClientRecord) {
	summary, err := g.provider.FetchBillingSummary(ctx, c.Domain, c.CaseNumber)
	if err != nil {
		g.logFetchFailure("billing", c, err)
		c.FlagForReview(fmt.Sprintf("billing check failed: %v", err), g.now())
		return
	}

	if summary.PastDue > 0 {
		now := g.now()
		c.DelinquentAmount = &summary.PastDue
		c.DelinquentDate = &now
		c.FlagForReview(fmt.Sprintf("past due balance of %g", summary.PastDue), now)
	}

	paid := summary.PaidAmount
	if c.TotalPayment == nil {
		// First observation seeds silently, same pattern as the invoice check.
		c.TotalPayment = &paid
		return
	}
	if paid == *c.TotalPayment {
		return
	}

	if paid < *c.TotalPayment && g.cfg.ReviewOnPaymentDrop {
		c.FlagForReview(fmt.Sprintf("total payment decreased %g->%g, possible refund",
			*c.TotalPayment, paid), g.now())
	}
	if paid > *c.TotalPayment && paid > g.cfg.PaymentCeiling {
		c.FlagForReview(fmt.Sprintf("total payment %g exceeds ceiling %g",
			paid, g.cfg.PaymentCeiling), g.now())
	}
	c.TotalPayment = &paid
}

var statusFromToRe = regexp.MustCompile(`(?i)status changed from .+ to (tier ?\d)`)

// checkActivities scans activity history after the invoice cutoff for status
// edits and, under the strict profile, tier transitions and do-not-contact
// intent.
func (g *Gate) checkActivities(ctx context.Context, c *models.ClientRecord) {
	activities, err := g.provider.FetchActivities(ctx, c.Domain, c.CaseNumber)
	if err != nil {
		g.logFetchFailure("activity", c, err)
		c.FlagForReview(fmt.Sprintf("activity check failed: %v", err), g.now())
		return
	}
	if len(activities) == 0 {
		c.FlagForReview("activity check failed: no activity history", g.now())
		return
	}

	var conversions []time.Time
	for _, a := range activities {
		if strings.Contains(activityText(a), "converted from prospect") {
			conversions = append(conversions, a.CreatedDate)
		}
	}

	var since time.Time
	if c.SinceDate != nil {
		since = *c.SinceDate
	}

	for _, a := range activities {
		text := activityText(a)

		if len(g.cfg.DoNotContactPhrases) > 0 {
			for _, phrase := range g.cfg.DoNotContactPhrases {
				if strings.Contains(text, phrase) {
					c.FlagForReview(fmt.Sprintf("do-not-contact intent %q on %s",
						phrase, a.CreatedDate.Format("Jan 2, 2006")), g.now())
					break
				}
			}
		}

		if !a.CreatedDate.After(since) {
			continue
		}
		if !strings.Contains(text, "status changed") {
			continue
		}
		if g.nearConversion(a.CreatedDate, conversions) {
			continue
		}

		if g.cfg.MatchStatusTiers {
			if m := statusFromToRe.FindStringSubmatch(text); m != nil {
				tier := strings.ReplaceAll(strings.ToLower(m[1]), " ", "")
				switch tier {
				case "tier5":
					c.FlagForReview(fmt.Sprintf("status moved to Tier 5 on %s",
						a.CreatedDate.Format("Jan 2, 2006")), g.now())
				case "tier4":
					if g.now().Sub(a.CreatedDate) <= g.cfg.Tier4Window {
						c.FlagForReview(fmt.Sprintf("status moved to Tier 4 on %s",
							a.CreatedDate.Format("Jan 2, 2006")), g.now())
					}
				}
				continue
			}
		}

		snippet := a.Subject
		if snippet == "" {
			snippet = a.Comment
		}
		c.FlagForReview(fmt.Sprintf("status changed on %s: %s",
			a.CreatedDate.Format("Jan 2, 2006"), snippet), g.now())
	}
}

// logFetchFailure logs provider outages at warn and anything else, which
// points at a bug on our side, at error.
func (g *Gate) logFetchFailure(check string, c *models.ClientRecord, err error) {
	if domain.IsProviderFetch(err) {
		g.log.Warn(check+" fetch failed", "case", c.CaseNumber, "error", err)
		return
	}
	g.log.Error(check+" fetch failed", "case", c.CaseNumber, "error", err)
}

// nearConversion reports whether ts falls within the tolerance window of any
// conversion activity.
func (g *Gate) nearConversion(ts time.Time, conversions []time.Time) bool {
	for _, conv := range conversions {
		d := ts.Sub(conv)
		if d < 0 {
			d = -d
		}
		if d <= g.cfg.ConversionTolerance {
			return true
		}
	}
	return false
}

func activityText(a domain.Activity) string {
	return strings.ToLower(a.Subject + " " + a.Comment)
}
