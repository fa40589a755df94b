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

var _ domain.ScheduleStore = (*Store)(nil)

// GetByDate loads the schedule for one calendar date.
func (s *Store) GetByDate(ctx context.Context, date time.Time) (*models.DailySchedule, error) {
	query := s.builder.Select("date", "email_queue", "text_queue", "pace").
		From("daily_schedules").
		Where(sq.Eq{"date": date.UTC().Format(dateLayout)})

	var (
		dateStr    string
		emailsJSON string
		textsJSON  string
		sched      models.DailySchedule
	)
	err := query.RunWith(s.db).QueryRowContext(ctx).
		Scan(&dateStr, &emailsJSON, &textsJSON, &sched.Pace)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("schedule")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}

	if sched.Date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC); err != nil {
		return nil, fmt.Errorf("failed to parse schedule date: %w", err)
	}
	if err := decodeJSON(emailsJSON, &sched.EmailQueue); err != nil {
		return nil, err
	}
	if err := decodeJSON(textsJSON, &sched.TextQueue); err != nil {
		return nil, err
	}
	return &sched, nil
}

// Create inserts a fresh schedule document for its date.
func (s *Store) CreateSchedule(ctx context.Context, sched *models.DailySchedule) error {
	emailsJSON, err := encodeJSON(orEmpty(sched.EmailQueue))
	if err != nil {
		return err
	}
	textsJSON, err := encodeJSON(orEmpty(sched.TextQueue))
	if err != nil {
		return err
	}

	query := s.builder.Insert("daily_schedules").
		Columns("date", "email_queue", "text_queue", "pace").
		Values(sched.Date.UTC().Format(dateLayout), emailsJSON, textsJSON, sched.Pace).
		Suffix("ON CONFLICT (date) DO NOTHING")

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// AppendEntries appends new queue entries, re-reading persisted state first so
// a case number never lands in the same queue twice no matter how many times
// the builder runs that day.
func (s *Store) AppendEntries(ctx context.Context, date time.Time, emails, texts []models.QueueEntry) error {
	sched, err := s.GetByDate(ctx, date)
	if err != nil {
		return err
	}

	for _, e := range emails {
		if !sched.InQueue(models.ContactEmail, e.CaseNumber) {
			sched.EmailQueue = append(sched.EmailQueue, e)
		}
	}
	for _, e := range texts {
		if !sched.InQueue(models.ContactText, e.CaseNumber) {
			sched.TextQueue = append(sched.TextQueue, e)
		}
	}

	return s.saveQueues(ctx, sched)
}

// MarkSent stamps delivered entries in one queue.
func (s *Store) MarkSent(ctx context.Context, date time.Time, ct models.ContactType, caseNumbers []string, sentAt time.Time) error {
	if len(caseNumbers) == 0 {
		return nil
	}
	sched, err := s.GetByDate(ctx, date)
	if err != nil {
		return err
	}

	set := make(map[string]bool, len(caseNumbers))
	for _, id := range caseNumbers {
		set[id] = true
	}

	queue := sched.EmailQueue
	if ct == models.ContactText {
		queue = sched.TextQueue
	}
	for i := range queue {
		if set[queue[i].CaseNumber] && queue[i].SentAt == nil {
			ts := sentAt
			queue[i].SentAt = &ts
		}
	}

	return s.saveQueues(ctx, sched)
}

func (s *Store) saveQueues(ctx context.Context, sched *models.DailySchedule) error {
	emailsJSON, err := encodeJSON(orEmpty(sched.EmailQueue))
	if err != nil {
		return err
	}
	textsJSON, err := encodeJSON(orEmpty(sched.TextQueue))
	if err != nil {
		return err
	}

	query := s.builder.Update("daily_schedules").
		Set("email_queue", emailsJSON).
		Set("text_queue", textsJSON).
		Where(sq.Eq{"date": sched.Date.UTC().Format(dateLayout)})

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to save queues: %w", err)
	}
	return nil
}

func orEmpty(entries []models.QueueEntry) []models.QueueEntry {
	if entries == nil {
		return []models.QueueEntry{}
	}
	return entries
}
