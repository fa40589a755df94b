package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

var _ domain.PeriodStore = (*Store)(nil)

var periodColumns = []string{
	"id", "create_date_stage", "period_start_date",
	"create_date_client_ids", "contacted_client_ids", "created_at",
}

// Latest returns the most recently created period. The daily builder consults
// a single current period at a time.
func (s *Store) Latest(ctx context.Context) (*models.PeriodContacts, error) {
	query := s.builder.Select(periodColumns...).
		From("period_contacts").
		OrderBy("created_at DESC", "id DESC").
		Limit(1)

	row := query.RunWith(s.db).QueryRowContext(ctx)
	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("period")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest period: %w", err)
	}
	return p, nil
}

// ListRecent returns up to limit most recent periods for one stage, newest
// first.
func (s *Store) ListRecent(ctx context.Context, stage models.Stage, limit int) ([]*models.PeriodContacts, error) {
	query := s.builder.Select(periodColumns...).
		From("period_contacts").
		Where(sq.Eq{"create_date_stage": string(stage)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var result []*models.PeriodContacts
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Create inserts a new period and returns it with its assigned ID.
func (s *Store) CreatePeriod(ctx context.Context, p *models.PeriodContacts) (*models.PeriodContacts, error) {
	membersJSON, err := encodeJSON(p.CreateDateClientIDs)
	if err != nil {
		return nil, err
	}
	contactedJSON, err := encodeJSON(orEmptyIDs(p.ContactedClientIDs))
	if err != nil {
		return nil, err
	}

	query := s.builder.Insert("period_contacts").
		Columns("create_date_stage", "period_start_date",
			"create_date_client_ids", "contacted_client_ids", "created_at").
		Values(string(p.CreateDateStage), encodeTime(p.PeriodStartDate),
			membersJSON, contactedJSON, encodeTime(p.CreatedAt)).
		Suffix("RETURNING id")

	if err := query.RunWith(s.db).QueryRowContext(ctx).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}
	return p, nil
}

// UpdateMembers replaces a period's working set and contacted set.
func (s *Store) UpdateMembers(ctx context.Context, id int, memberIDs, contactedIDs []string) error {
	membersJSON, err := encodeJSON(orEmptyIDs(memberIDs))
	if err != nil {
		return err
	}
	contactedJSON, err := encodeJSON(orEmptyIDs(contactedIDs))
	if err != nil {
		return err
	}

	query := s.builder.Update("period_contacts").
		Set("create_date_client_ids", membersJSON).
		Set("contacted_client_ids", contactedJSON).
		Where(sq.Eq{"id": id})

	result, err := query.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update period members: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("period")
	}
	return nil
}

func scanPeriod(row rowScanner) (*models.PeriodContacts, error) {
	var (
		p             models.PeriodContacts
		stageStr      string
		startStr      string
		membersJSON   string
		contactedJSON string
		createdStr    string
	)
	if err := row.Scan(&p.ID, &stageStr, &startStr, &membersJSON, &contactedJSON, &createdStr); err != nil {
		return nil, err
	}

	p.CreateDateStage = models.Stage(stageStr)

	var err error
	if p.PeriodStartDate, err = decodeTime(startStr); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = decodeTime(createdStr); err != nil {
		return nil, err
	}
	if err := decodeJSON(membersJSON, &p.CreateDateClientIDs); err != nil {
		return nil, err
	}
	if err := decodeJSON(contactedJSON, &p.ContactedClientIDs); err != nil {
		return nil, err
	}
	return &p, nil
}

func orEmptyIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
