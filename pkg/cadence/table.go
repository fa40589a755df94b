package cadence

import (
	"fmt"

	"github.com/jordanlanch/taxpipe/pkg/models"
)

// Lifecycle discriminates which baseline a client's day offsets are measured
// from: the sale (or second payment) date, or the shared period start date.
type Lifecycle string

const (
	LifecycleSale       Lifecycle = "saleDate"
	LifecycleCreateDate Lifecycle = "createDate"
)

// Step is one cadence entry: which channel to use and which content piece to
// send. Steps are value types; the table never changes at runtime.
type Step struct {
	ContactType models.ContactType `json:"contact_type"`
	StagePiece  string             `json:"stage_piece"`
}

// Table maps (lifecycle, stage, exact day offset) to a step. An offset with no
// entry means no action for that client that day; there is no interpolation.
type Table map[Lifecycle]map[models.Stage]map[int]Step

// Lookup returns the step for the given offset, or nil when none is defined.
func (t Table) Lookup(lc Lifecycle, stage models.Stage, daysOut int) *Step {
	if daysOut < 0 {
		return nil
	}
	stages, ok := t[lc]
	if !ok {
		return nil
	}
	offsets, ok := stages[stage]
	if !ok {
		return nil
	}
	step, ok := offsets[daysOut]
	if !ok {
		return nil
	}
	return &step
}

// Validate asserts that no stage piece repeats within one (lifecycle, stage)
// offset sequence. A repeated piece would let a client legitimately receive
// the same content twice, so a mis-specified table must fail fast at startup.
func (t Table) Validate() error {
	for lc, stages := range t {
		for stage, offsets := range stages {
			seen := make(map[string]int, len(offsets))
			for day, step := range offsets {
				if step.StagePiece == "" {
					return fmt.Errorf("cadence %s/%s day %d: empty stage piece", lc, stage, day)
				}
				if prev, ok := seen[step.StagePiece]; ok {
					return fmt.Errorf("cadence %s/%s: piece %q defined at both day %d and day %d",
						lc, stage, step.StagePiece, prev, day)
				}
				seen[step.StagePiece] = day
			}
		}
	}
	return nil
}

func email(piece string) Step { return Step{ContactType: models.ContactEmail, StagePiece: piece} }
func text(piece string) Step  { return Step{ContactType: models.ContactText, StagePiece: piece} }

// Default is the production cadence. Each stage opens and closes on email with
// a run of texts between; offsets are business-calibrated, not evenly spaced.
var Default = Table{
	LifecycleSale: {
		models.StagePrac: {
			1:  email("Prac Email 1"),
			3:  text("Prac Text 1"),
			5:  text("Prac Text 2"),
			8:  text("Prac Text 3"),
			12: email("Prac Email 2"),
		},
		models.StagePOA: {
			2:  email("POA Email 1"),
			4:  text("POA Text 1"),
			7:  text("POA Text 2"),
			11: text("POA Text 3"),
			15: email("POA Email 2"),
		},
		models.StageF433A: {
			1:  email("433a Email 1"),
			4:  text("433a Text 1"),
			7:  text("433a Text 2"),
			10: text("433a Text 3"),
			14: email("433a Email 2"),
		},
		models.StageUpdate433A: {
			0:  email("Update 433a Email 1"),
			3:  text("Update 433a Text 1"),
			6:  text("Update 433a Text 2"),
			10: email("Update 433a Email 2"),
		},
	},
	LifecycleCreateDate: {
		models.StageTaxOrganizer: {
			0:  email("Tax Organizer Email 1"),
			2:  text("Tax Organizer Text 1"),
			5:  text("Tax Organizer Text 2"),
			9:  text("Tax Organizer Text 3"),
			14: email("Tax Organizer Email 2"),
		},
		models.StagePenaltyAbatement: {
			0:  email("Penalty Abatement Email 1"),
			3:  text("Penalty Abatement Text 1"),
			7:  text("Penalty Abatement Text 2"),
			12: email("Penalty Abatement Email 2"),
		},
		models.StageTaxDeadline: {
			0: email("Tax Deadline Email 1"),
			2: text("Tax Deadline Text 1"),
			4: text("Tax Deadline Text 2"),
			7: email("Tax Deadline Email 2"),
		},
		models.StageYearReview: {
			0:  email("Year Review Email 1"),
			3:  text("Year Review Text 1"),
			8:  text("Year Review Text 2"),
			13: email("Year Review Email 2"),
		},
		models.StageAdserv: {
			0: email("Adserv Email 1"),
			4: text("Adserv Text 1"),
			9: email("Adserv Email 2"),
		},
	},
}

// DefaultRepeatExempt lists stages whose pieces may be re-sent. POA is the one
// historical exception; keep the set configurable rather than special-cased.
var DefaultRepeatExempt = map[models.Stage]bool{
	models.StagePOA: true,
}
