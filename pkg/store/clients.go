package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

var _ domain.ClientStore = (*Store)(nil)

var clientColumns = []string{
	"case_number", "domain", "name", "email", "cell",
	"create_date", "sale_date", "second_payment_date",
	"stage", "status", "stages_received", "stage_pieces",
	"contacted_this_period", "last_contact_date",
	"invoice_count", "last_invoice_amount", "initial_payment", "total_payment",
	"last_invoice_date", "since_date",
	"delinquent_amount", "delinquent_date",
	"token", "token_expires_at",
	"review_messages", "review_dates",
}

// GetByCaseNumber loads one client record.
func (s *Store) GetByCaseNumber(ctx context.Context, caseNumber string) (*models.ClientRecord, error) {
	query := s.builder.Select(clientColumns...).
		From("clients").
		Where(sq.Eq{"case_number": caseNumber})

	row := query.RunWith(s.db).QueryRowContext(ctx)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("client")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch client: %w", err)
	}
	return c, nil
}

// ListByCaseNumbers resolves a set of case numbers to full records. Missing
// IDs are silently absent from the result.
func (s *Store) ListByCaseNumbers(ctx context.Context, caseNumbers []string) ([]*models.ClientRecord, error) {
	if len(caseNumbers) == 0 {
		return nil, nil
	}
	query := s.builder.Select(clientColumns...).
		From("clients").
		Where(sq.Eq{"case_number": caseNumbers})
	return s.listClients(ctx, query)
}

// ListSaleClients returns sale-lifecycle clients in the given statuses whose
// sale date falls on or after the cutoff.
func (s *Store) ListSaleClients(ctx context.Context, statuses []models.Status, saleDateSince time.Time) ([]*models.ClientRecord, error) {
	query := s.builder.Select(clientColumns...).
		From("clients").
		Where(sq.Eq{"status": statusStrings(statuses)}).
		Where(sq.NotEq{"sale_date": nil}).
		Where(sq.GtOrEq{"sale_date": encodeTime(saleDateSince)}).
		OrderBy("sale_date")
	return s.listClients(ctx, query)
}

// ListCreateDateClients returns clients with no sale date in the given
// statuses.
func (s *Store) ListCreateDateClients(ctx context.Context, statuses []models.Status) ([]*models.ClientRecord, error) {
	query := s.builder.Select(clientColumns...).
		From("clients").
		Where(sq.Eq{"status": statusStrings(statuses)}).
		Where(sq.Eq{"sale_date": nil}).
		OrderBy("create_date")
	return s.listClients(ctx, query)
}

// ListByStatus returns every client in one status.
func (s *Store) ListByStatus(ctx context.Context, status models.Status) ([]*models.ClientRecord, error) {
	query := s.builder.Select(clientColumns...).
		From("clients").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("case_number")
	return s.listClients(ctx, query)
}

// Upsert writes a client record keyed by case number. Re-running a build
// re-upserts the same state, which keeps recovery simple.
func (s *Store) Upsert(ctx context.Context, c *models.ClientRecord) error {
	stagesJSON, err := encodeJSON(c.StagesReceived)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}
	piecesJSON, err := encodeJSON(c.StagePieces)
	if err != nil {
		return fmt.Errorf("failed to encode pieces: %w", err)
	}
	messagesJSON, err := encodeJSON(c.ReviewMessages)
	if err != nil {
		return fmt.Errorf("failed to encode review messages: %w", err)
	}
	datesJSON, err := encodeJSON(c.ReviewDates)
	if err != nil {
		return fmt.Errorf("failed to encode review dates: %w", err)
	}

	query := s.builder.Insert("clients").
		Columns(clientColumns...).
		Values(
			c.CaseNumber, string(c.Domain), c.Name, c.Email, c.Cell,
			encodeTime(c.CreateDate), encodeTimePtr(c.SaleDate), encodeTimePtr(c.SecondPaymentDate),
			string(c.Stage), string(c.Status), stagesJSON, piecesJSON,
			c.ContactedThisPeriod, encodeTimePtr(c.LastContactDate),
			nullInt(c.InvoiceCount), nullFloat(c.LastInvoiceAmount), nullFloat(c.InitialPayment), nullFloat(c.TotalPayment),
			encodeTimePtr(c.LastInvoiceDate), encodeTimePtr(c.SinceDate),
			nullFloat(c.DelinquentAmount), encodeTimePtr(c.DelinquentDate),
			c.Token, encodeTimePtr(c.TokenExpiresAt),
			messagesJSON, datesJSON,
		).
		Suffix(`ON CONFLICT (case_number) DO UPDATE SET
			domain = EXCLUDED.domain,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			cell = EXCLUDED.cell,
			create_date = EXCLUDED.create_date,
			sale_date = EXCLUDED.sale_date,
			second_payment_date = EXCLUDED.second_payment_date,
			stage = EXCLUDED.stage,
			status = EXCLUDED.status,
			stages_received = EXCLUDED.stages_received,
			stage_pieces = EXCLUDED.stage_pieces,
			contacted_this_period = EXCLUDED.contacted_this_period,
			last_contact_date = EXCLUDED.last_contact_date,
			invoice_count = EXCLUDED.invoice_count,
			last_invoice_amount = EXCLUDED.last_invoice_amount,
			initial_payment = EXCLUDED.initial_payment,
			total_payment = EXCLUDED.total_payment,
			last_invoice_date = EXCLUDED.last_invoice_date,
			since_date = EXCLUDED.since_date,
			delinquent_amount = EXCLUDED.delinquent_amount,
			delinquent_date = EXCLUDED.delinquent_date,
			token = EXCLUDED.token,
			token_expires_at = EXCLUDED.token_expires_at,
			review_messages = EXCLUDED.review_messages,
			review_dates = EXCLUDED.review_dates`)

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}

func (s *Store) listClients(ctx context.Context, query sq.SelectBuilder) ([]*models.ClientRecord, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var result []*models.ClientRecord
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner) (*models.ClientRecord, error) {
	var (
		c            models.ClientRecord
		domainStr    string
		stageStr     string
		statusStr    string
		createDate   string
		saleDate     sql.NullString
		secondPay    sql.NullString
		stagesJSON   string
		piecesJSON   string
		lastContact  sql.NullString
		invCount     sql.NullInt64
		lastInvAmt   sql.NullFloat64
		initialPay   sql.NullFloat64
		totalPay     sql.NullFloat64
		lastInvDate  sql.NullString
		sinceDate    sql.NullString
		delinqAmt    sql.NullFloat64
		delinqDate   sql.NullString
		tokenExpires sql.NullString
		messagesJSON string
		datesJSON    string
	)

	err := row.Scan(
		&c.CaseNumber, &domainStr, &c.Name, &c.Email, &c.Cell,
		&createDate, &saleDate, &secondPay,
		&stageStr, &statusStr, &stagesJSON, &piecesJSON,
		&c.ContactedThisPeriod, &lastContact,
		&invCount, &lastInvAmt, &initialPay, &totalPay,
		&lastInvDate, &sinceDate,
		&delinqAmt, &delinqDate,
		&c.Token, &tokenExpires,
		&messagesJSON, &datesJSON,
	)
	if err != nil {
		return nil, err
	}

	c.Domain = models.Domain(domainStr)
	c.Stage = models.Stage(stageStr)
	c.Status = models.Status(statusStr)

	if c.CreateDate, err = decodeTime(createDate); err != nil {
		return nil, err
	}
	if c.SaleDate, err = decodeTimePtr(saleDate); err != nil {
		return nil, err
	}
	if c.SecondPaymentDate, err = decodeTimePtr(secondPay); err != nil {
		return nil, err
	}
	if c.LastContactDate, err = decodeTimePtr(lastContact); err != nil {
		return nil, err
	}
	if c.LastInvoiceDate, err = decodeTimePtr(lastInvDate); err != nil {
		return nil, err
	}
	if c.SinceDate, err = decodeTimePtr(sinceDate); err != nil {
		return nil, err
	}
	if c.DelinquentDate, err = decodeTimePtr(delinqDate); err != nil {
		return nil, err
	}
	if c.TokenExpiresAt, err = decodeTimePtr(tokenExpires); err != nil {
		return nil, err
	}

	c.InvoiceCount = intPtr(invCount)
	c.LastInvoiceAmount = floatPtr(lastInvAmt)
	c.InitialPayment = floatPtr(initialPay)
	c.TotalPayment = floatPtr(totalPay)
	c.DelinquentAmount = floatPtr(delinqAmt)

	if err := decodeJSON(stagesJSON, &c.StagesReceived); err != nil {
		return nil, err
	}
	if err := decodeJSON(piecesJSON, &c.StagePieces); err != nil {
		return nil, err
	}
	if err := decodeJSON(messagesJSON, &c.ReviewMessages); err != nil {
		return nil, err
	}
	if err := decodeJSON(datesJSON, &c.ReviewDates); err != nil {
		return nil, err
	}

	return &c, nil
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
