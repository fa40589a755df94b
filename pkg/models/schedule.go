package models

import "time"

// QueueEntry is one pending send in a day's queue. It carries everything a
// template-rendering sender needs without re-querying the pipeline.
type QueueEntry struct {
	Name        string      `json:"name"`
	CaseNumber  string      `json:"case_number"`
	Address     string      `json:"address"` // email address or E.164 cell
	Domain      Domain      `json:"domain"`
	StagePiece  string      `json:"stage_piece"`
	ContactType ContactType `json:"contact_type"`
	Token       string      `json:"token,omitempty"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
}

// Delivered reports whether the entry has already gone out.
func (e QueueEntry) Delivered() bool {
	return e.SentAt != nil
}

// DailySchedule is one day's worth of outbound work, keyed by date. Texts are
// pace-limited, so a day's text queue may not drain; leftovers carry into the
// next day's schedule.
type DailySchedule struct {
	Date       time.Time    `json:"date"`
	EmailQueue []QueueEntry `json:"email_queue"`
	TextQueue  []QueueEntry `json:"text_queue"`
	Pace       int          `json:"pace"`
}

// InQueue reports whether a case number is already present in the given queue.
func (s *DailySchedule) InQueue(ct ContactType, caseNumber string) bool {
	queue := s.EmailQueue
	if ct == ContactText {
		queue = s.TextQueue
	}
	for _, e := range queue {
		if e.CaseNumber == caseNumber {
			return true
		}
	}
	return false
}

// UndeliveredTexts returns the text entries that never went out.
func (s *DailySchedule) UndeliveredTexts() []QueueEntry {
	var leftover []QueueEntry
	for _, e := range s.TextQueue {
		if !e.Delivered() {
			leftover = append(leftover, e)
		}
	}
	return leftover
}

// PeriodContacts is one active campaign period for create-date clients: a
// stage, a start date the cadence is measured from, and the working member set.
type PeriodContacts struct {
	ID              int       `json:"id"`
	CreateDateStage Stage     `json:"create_date_stage"`
	PeriodStartDate time.Time `json:"period_start_date"`

	// CreateDateClientIDs is the current working set, pruned as clients
	// complete or get pulled to review.
	CreateDateClientIDs []string `json:"create_date_client_ids"`

	// ContactedClientIDs accumulates every member ever contacted during the
	// period; the period builder's cooldown filter reads it.
	ContactedClientIDs []string `json:"contacted_client_ids"`

	CreatedAt time.Time `json:"created_at"`
}

// HasContacted reports whether the client was contacted during this period.
func (p *PeriodContacts) HasContacted(caseNumber string) bool {
	for _, id := range p.ContactedClientIDs {
		if id == caseNumber {
			return true
		}
	}
	return false
}
