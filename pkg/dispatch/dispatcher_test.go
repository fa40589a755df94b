package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
)

var testDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

type memSchedules struct {
	byDate map[string]*models.DailySchedule
}

func newMemSchedules(scheds ...*models.DailySchedule) *memSchedules {
	m := &memSchedules{byDate: map[string]*models.DailySchedule{}}
	for _, s := range scheds {
		m.byDate[s.Date.UTC().Format("2006-01-02")] = s
	}
	return m
}

func (m *memSchedules) GetByDate(ctx context.Context, date time.Time) (*models.DailySchedule, error) {
	s, ok := m.byDate[date.UTC().Format("2006-01-02")]
	if !ok {
		return nil, domain.NewNotFoundError("schedule")
	}
	cp := *s
	cp.EmailQueue = append([]models.QueueEntry(nil), s.EmailQueue...)
	cp.TextQueue = append([]models.QueueEntry(nil), s.TextQueue...)
	return &cp, nil
}

func (m *memSchedules) CreateSchedule(ctx context.Context, sched *models.DailySchedule) error {
	m.byDate[sched.Date.UTC().Format("2006-01-02")] = sched
	return nil
}

func (m *memSchedules) AppendEntries(ctx context.Context, date time.Time, emails, texts []models.QueueEntry) error {
	return nil
}

func (m *memSchedules) MarkSent(ctx context.Context, date time.Time, ct models.ContactType, caseNumbers []string, sentAt time.Time) error {
	s, ok := m.byDate[date.UTC().Format("2006-01-02")]
	if !ok {
		return domain.NewNotFoundError("schedule")
	}
	set := map[string]bool{}
	for _, id := range caseNumbers {
		set[id] = true
	}
	queue := s.EmailQueue
	if ct == models.ContactText {
		queue = s.TextQueue
	}
	for i := range queue {
		if set[queue[i].CaseNumber] && queue[i].SentAt == nil {
			ts := sentAt
			queue[i].SentAt = &ts
		}
	}
	return nil
}

type recordingSender struct {
	sent    []string
	failFor map[string]bool
}

func (r *recordingSender) Send(ctx context.Context, entry models.QueueEntry) error {
	if r.failFor[entry.CaseNumber] {
		return fmt.Errorf("provider rejected %s", entry.CaseNumber)
	}
	r.sent = append(r.sent, entry.CaseNumber)
	return nil
}

func textEntry(caseNumber string) models.QueueEntry {
	return models.QueueEntry{
		CaseNumber:  caseNumber,
		Address:     "+12024561111",
		StagePiece:  "Prac Text 1",
		ContactType: models.ContactText,
	}
}

func emailEntry(caseNumber string) models.QueueEntry {
	return models.QueueEntry{
		CaseNumber:  caseNumber,
		Address:     caseNumber + "@example.com",
		StagePiece:  "Prac Email 1",
		ContactType: models.ContactEmail,
	}
}

func TestDispatchEmailsDrainsQueue(t *testing.T) {
	sent := testDate.Add(8 * time.Hour)
	schedules := newMemSchedules(&models.DailySchedule{
		Date: testDate,
		EmailQueue: []models.QueueEntry{
			emailEntry("C-1"),
			{CaseNumber: "C-2", ContactType: models.ContactEmail, SentAt: &sent},
			emailEntry("C-3"),
		},
		Pace: 25,
	})
	emails := &recordingSender{}
	d := NewDispatcher(schedules, emails, &recordingSender{}, 1000, nil, nil)

	result, err := d.DispatchEmails(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"C-1", "C-3"}, emails.sent, "delivered entries are skipped")

	sched, err := schedules.GetByDate(context.Background(), testDate)
	require.NoError(t, err)
	for _, e := range sched.EmailQueue {
		assert.NotNil(t, e.SentAt, "every email carries a sent stamp after dispatch")
	}
}

func TestDispatchEmailsRecordsFailuresWithoutMarking(t *testing.T) {
	schedules := newMemSchedules(&models.DailySchedule{
		Date:       testDate,
		EmailQueue: []models.QueueEntry{emailEntry("C-1"), emailEntry("C-2")},
		Pace:       25,
	})
	emails := &recordingSender{failFor: map[string]bool{"C-1": true}}
	d := NewDispatcher(schedules, emails, &recordingSender{}, 1000, nil, nil)

	result, err := d.DispatchEmails(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "C-1")

	sched, err := schedules.GetByDate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Nil(t, sched.EmailQueue[0].SentAt, "failed sends stay queued")
	assert.NotNil(t, sched.EmailQueue[1].SentAt)
}

func TestDispatchTextsHonorsPace(t *testing.T) {
	sched := &models.DailySchedule{Date: testDate, Pace: 3}
	for i := 1; i <= 10; i++ {
		sched.TextQueue = append(sched.TextQueue, textEntry(fmt.Sprintf("C-%d", i)))
	}
	schedules := newMemSchedules(sched)
	texts := &recordingSender{}
	d := NewDispatcher(schedules, &recordingSender{}, texts, 1000, nil, nil)

	result, err := d.DispatchTexts(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, []string{"C-1", "C-2", "C-3"}, texts.sent, "oldest first")

	got, err := schedules.GetByDate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, got.UndeliveredTexts(), 7, "the rest wait for the next tick")
}

func TestDispatchTextsNextTickPicksUpWhereItLeft(t *testing.T) {
	sched := &models.DailySchedule{Date: testDate, Pace: 2}
	for i := 1; i <= 3; i++ {
		sched.TextQueue = append(sched.TextQueue, textEntry(fmt.Sprintf("C-%d", i)))
	}
	schedules := newMemSchedules(sched)
	texts := &recordingSender{}
	d := NewDispatcher(schedules, &recordingSender{}, texts, 1000, nil, nil)

	_, err := d.DispatchTexts(context.Background(), testDate)
	require.NoError(t, err)
	second, err := d.DispatchTexts(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 1, second.Sent)
	assert.Equal(t, []string{"C-1", "C-2", "C-3"}, texts.sent, "no double sends across ticks")
}

func TestDispatchMissingSchedule(t *testing.T) {
	d := NewDispatcher(newMemSchedules(), &recordingSender{}, &recordingSender{}, 1000, nil, nil)

	_, err := d.DispatchEmails(context.Background(), testDate)
	assert.Error(t, err)
	_, err = d.DispatchTexts(context.Background(), testDate)
	assert.Error(t, err)
}
