package domain

import (
	"context"
	"time"

	"github.com/jordanlanch/taxpipe/pkg/models"
)

// Invoice is one invoice row from the case API.
type Invoice struct {
	CreatedDate  time.Time  `json:"CreatedDate"`
	ModifiedDate *time.Time `json:"ModifiedDate,omitempty"`
	Amount       float64    `json:"Amount"`
}

// BillingSummary is the case API's billing rollup for one case.
type BillingSummary struct {
	PastDue    float64 `json:"PastDue"`
	PaidAmount float64 `json:"PaidAmount"`
	Balance    float64 `json:"Balance"`
}

// Activity is one activity-history row from the case API.
type Activity struct {
	CreatedDate time.Time `json:"CreatedDate"`
	Subject     string    `json:"Subject"`
	Comment     string    `json:"Comment"`
	CreatedBy   string    `json:"CreatedBy,omitempty"`
}

// CaseDataProvider exposes the three reads the pipeline needs from the
// external case-management system, keyed by (domain, case number).
type CaseDataProvider interface {
	FetchInvoices(ctx context.Context, domain models.Domain, caseNumber string) ([]Invoice, error)
	FetchBillingSummary(ctx context.Context, domain models.Domain, caseNumber string) (*BillingSummary, error)
	FetchActivities(ctx context.Context, domain models.Domain, caseNumber string) ([]Activity, error)
}

// ClientStore defines persistence for client records.
type ClientStore interface {
	GetByCaseNumber(ctx context.Context, caseNumber string) (*models.ClientRecord, error)
	ListByCaseNumbers(ctx context.Context, caseNumbers []string) ([]*models.ClientRecord, error)
	ListSaleClients(ctx context.Context, statuses []models.Status, saleDateSince time.Time) ([]*models.ClientRecord, error)
	ListCreateDateClients(ctx context.Context, statuses []models.Status) ([]*models.ClientRecord, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.ClientRecord, error)
	Upsert(ctx context.Context, client *models.ClientRecord) error
}

// ScheduleStore defines persistence for daily schedules.
type ScheduleStore interface {
	GetByDate(ctx context.Context, date time.Time) (*models.DailySchedule, error)
	CreateSchedule(ctx context.Context, schedule *models.DailySchedule) error
	// AppendEntries must re-read the persisted queues and drop entries whose
	// case number is already queued, so repeated builds stay idempotent.
	AppendEntries(ctx context.Context, date time.Time, emails, texts []models.QueueEntry) error
	MarkSent(ctx context.Context, date time.Time, ct models.ContactType, caseNumbers []string, sentAt time.Time) error
}

// PeriodStore defines persistence for campaign periods.
type PeriodStore interface {
	Latest(ctx context.Context) (*models.PeriodContacts, error)
	ListRecent(ctx context.Context, stage models.Stage, limit int) ([]*models.PeriodContacts, error)
	CreatePeriod(ctx context.Context, period *models.PeriodContacts) (*models.PeriodContacts, error)
	UpdateMembers(ctx context.Context, id int, memberIDs, contactedIDs []string) error
}

// EmailSender delivers one rendered email.
type EmailSender interface {
	Send(ctx context.Context, entry models.QueueEntry) error
}

// TextSender delivers one rendered text message.
type TextSender interface {
	Send(ctx context.Context, entry models.QueueEntry) error
}
