package models

import "fmt"

// Domain identifies which brand a client belongs to. Most case data is
// partitioned by domain on the Logics side.
type Domain string

const (
	DomainTAG   Domain = "TAG"
	DomainWYNN  Domain = "WYNN"
	DomainAMITY Domain = "AMITY"
)

// ParseDomain validates a raw domain string.
func ParseDomain(s string) (Domain, error) {
	switch Domain(s) {
	case DomainTAG, DomainWYNN, DomainAMITY:
		return Domain(s), nil
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Stage is the current step in a client's outreach storyline.
type Stage string

const (
	StagePrac             Stage = "prac"
	StagePOA              Stage = "poa"
	StageF433A            Stage = "f433a"
	StageUpdate433A       Stage = "update433a"
	StagePenaltyAbatement Stage = "penaltyAbatement"
	StageTaxOrganizer     Stage = "taxOrganizer"
	StageTaxDeadline      Stage = "taxDeadline"
	StageYearReview       Stage = "yearReview"
	StageAdserv           Stage = "adserv"
)

// Stages lists every valid stage.
var Stages = []Stage{
	StagePrac,
	StagePOA,
	StageF433A,
	StageUpdate433A,
	StagePenaltyAbatement,
	StageTaxOrganizer,
	StageTaxDeadline,
	StageYearReview,
	StageAdserv,
}

// ParseStage validates a raw stage string.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if Stage(s) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Status represents a client's automation status.
type Status string

const (
	StatusActive     Status = "active"
	StatusPartial    Status = "partial"
	StatusAdserv     Status = "adserv"
	StatusInactive   Status = "inactive"
	StatusInReview   Status = "inReview"
	StatusDelinquent Status = "delinquent"
)

// statusTransitions is the allowed status transition table. inReview is
// reachable from every state: any check can pull a client out of automation.
var statusTransitions = map[Status][]Status{
	StatusActive:     {StatusPartial, StatusAdserv, StatusInReview, StatusDelinquent, StatusInactive},
	StatusPartial:    {StatusActive, StatusAdserv, StatusInReview, StatusDelinquent, StatusInactive},
	StatusAdserv:     {StatusActive, StatusInReview, StatusInactive},
	StatusInReview:   {StatusActive, StatusPartial, StatusAdserv, StatusDelinquent, StatusInactive},
	StatusDelinquent: {StatusActive, StatusInReview, StatusInactive},
	StatusInactive:   {StatusActive, StatusInReview},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusPartial, StatusAdserv, StatusInactive, StatusInReview, StatusDelinquent:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ContactType is the channel a cadence step goes out on.
type ContactType string

const (
	ContactEmail ContactType = "email"
	ContactText  ContactType = "text"
)
