package models

import (
	"fmt"
	"time"
)

// ClientRecord is the central campaign entity, keyed by case number within a
// domain. Snapshot fields cache the last values observed from the case API so
// the verification gate can detect drift before the next automated contact.
type ClientRecord struct {
	CaseNumber string `json:"case_number"`
	Domain     Domain `json:"domain"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Cell  string `json:"cell"`

	// SaleDate present marks a sale-lifecycle client; absent means the client
	// is contacted on the shared period cadence measured from CreateDate.
	CreateDate        time.Time  `json:"create_date"`
	SaleDate          *time.Time `json:"sale_date,omitempty"`
	SecondPaymentDate *time.Time `json:"second_payment_date,omitempty"`

	Stage               Stage      `json:"stage"`
	Status              Status     `json:"status"`
	StagesReceived      []Stage    `json:"stages_received"`
	StagePieces         []string   `json:"stage_pieces"`
	ContactedThisPeriod bool       `json:"contacted_this_period"`
	LastContactDate     *time.Time `json:"last_contact_date,omitempty"`

	// Verification snapshot, nil until first observed.
	InvoiceCount      *int       `json:"invoice_count,omitempty"`
	LastInvoiceAmount *float64   `json:"last_invoice_amount,omitempty"`
	InitialPayment    *float64   `json:"initial_payment,omitempty"`
	TotalPayment      *float64   `json:"total_payment,omitempty"`
	LastInvoiceDate   *time.Time `json:"last_invoice_date,omitempty"`
	SinceDate         *time.Time `json:"since_date,omitempty"`

	DelinquentAmount *float64   `json:"delinquent_amount,omitempty"`
	DelinquentDate   *time.Time `json:"delinquent_date,omitempty"`

	// Token is the time-boxed capability embedded in outbound scheduling links.
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`

	// ReviewMessages is append-only: the audit trail of every reason this
	// client was ever pulled out of automation.
	ReviewMessages []string `json:"review_messages"`
	ReviewDates    []string `json:"review_dates"`
}

// IsSaleClient reports whether the client follows the sale-date cadence.
func (c *ClientRecord) IsSaleClient() bool {
	return c.SaleDate != nil
}

// HasStage reports whether the stage has already been sent.
func (c *ClientRecord) HasStage(stage Stage) bool {
	for _, s := range c.StagesReceived {
		if s == stage {
			return true
		}
	}
	return false
}

// HasPiece reports whether the content piece has already been sent.
func (c *ClientRecord) HasPiece(piece string) bool {
	for _, p := range c.StagePieces {
		if p == piece {
			return true
		}
	}
	return false
}

// AddStageReceived records a sent stage, ignoring duplicates.
func (c *ClientRecord) AddStageReceived(stage Stage) {
	if !c.HasStage(stage) {
		c.StagesReceived = append(c.StagesReceived, stage)
	}
}

// AddPiece records a sent content piece, ignoring duplicates.
func (c *ClientRecord) AddPiece(piece string) {
	if !c.HasPiece(piece) {
		c.StagePieces = append(c.StagePieces, piece)
	}
}

// TokenExpired reports whether the scheduling-link token has lapsed.
func (c *ClientRecord) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && c.TokenExpiresAt.Before(now)
}

// FlagForReview appends a review reason, de-duplicates the review date, and
// moves the client to inReview. Messages always accumulate; dates do not.
func (c *ClientRecord) FlagForReview(msg string, now time.Time) {
	c.ReviewMessages = append(c.ReviewMessages, msg)
	date := now.Format("2006-01-02")
	for _, d := range c.ReviewDates {
		if d == date {
			date = ""
			break
		}
	}
	if date != "" {
		c.ReviewDates = append(c.ReviewDates, date)
	}
	c.Status = StatusInReview
}

// InReview reports whether the client is parked for human resolution.
func (c *ClientRecord) InReview() bool {
	return c.Status == StatusInReview
}

// SetStatus moves the client to a new status, enforcing the transition table.
func (c *ClientRecord) SetStatus(next Status) error {
	if !c.Status.CanTransition(next) {
		return fmt.Errorf("illegal status transition %s -> %s", c.Status, next)
	}
	c.Status = next
	return nil
}
