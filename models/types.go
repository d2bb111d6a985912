// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Poll document field names. These double as the JSON paths the store writes to.
const (
	FieldParticipants = "participants"
	FieldNominations  = "nominations"
	FieldRankings     = "rankings"
	FieldHasStarted   = "hasStarted"
	FieldResults      = "results"
)

// Limits applied at poll creation
const (
	MaxTopicLength   = 100
	MaxNameLength    = 25
	MaxVotesPerVoter = 5
	MaxNominationLen = 100
)

// Request types

type CreatePollRequest struct {
	Topic         string `json:"topic"`
	VotesPerVoter int    `json:"votesPerVoter"`
	Name          string `json:"name"`
}

type JoinPollRequest struct {
	PollID string `json:"pollID"`
	Name   string `json:"name"`
}

// Response types

type CreatePollResponse struct {
	Poll        *Poll  `json:"poll"`
	AccessToken string `json:"accessToken"`
}

type JoinPollResponse struct {
	Poll        *Poll  `json:"poll"`
	AccessToken string `json:"accessToken"`
}

type RejoinPollResponse struct {
	Poll *Poll `json:"poll"`
}

// Domain types

// Poll is the whole shared state of one voting session. It is stored as a
// single JSON document and mutated one field path at a time.
type Poll struct {
	ID            string                `json:"id"`
	Topic         string                `json:"topic"`
	VotesPerVoter int                   `json:"votesPerVoter"`
	OwnerID       string                `json:"ownerID"`
	Participants  map[string]string     `json:"participants"`
	Nominations   map[string]Nomination `json:"nominations"`
	Rankings      map[string][]string   `json:"rankings"`
	Results       []Result              `json:"results"`
	HasStarted    bool                  `json:"hasStarted"`
	CreatedAt     time.Time             `json:"createdAt"`
	ExpiresAt     time.Time             `json:"expiresAt"`
}

// Nomination is a candidate proposed by a participant. CreatedAt orders
// nominations for tie-breaking since the document map is unordered.
type Nomination struct {
	ProposedBy string    `json:"proposedBy"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Result is one line of the final ranking.
type Result struct {
	NominationID   string `json:"nominationID"`
	NominationText string `json:"nominationText"`
	Score          int    `json:"score"`
}

// IsClosed reports whether results have been published.
func (p *Poll) IsClosed() bool {
	return len(p.Results) > 0
}

// Stage is a precondition on the poll's lifecycle that a write must still
// satisfy at the moment it is applied.
type Stage int

const (
	// AnyStage places no condition on the write.
	AnyStage Stage = iota
	// StageNominating holds until voting starts.
	StageNominating
	// StageVoting holds after voting starts and before results are published.
	StageVoting
)

// Holds reports whether p is in stage s.
func (s Stage) Holds(p *Poll) bool {
	switch s {
	case StageNominating:
		return !p.HasStarted
	case StageVoting:
		return p.HasStarted && !p.IsClosed()
	default:
		return true
	}
}

// Violation describes why a write guarded by s was refused for p.
func (s Stage) Violation(p *Poll) error {
	switch {
	case s == StageNominating:
		return NewConflictError("poll %s has already started", p.ID)
	case s == StageVoting && !p.HasStarted:
		return NewConflictError("poll %s has not started", p.ID)
	default:
		return NewConflictError("poll %s is closed", p.ID)
	}
}

// Normalize replaces nil collections so that the document always
// serializes with empty objects and arrays instead of null.
func (p *Poll) Normalize() {
	if p.Participants == nil {
		p.Participants = map[string]string{}
	}
	if p.Nominations == nil {
		p.Nominations = map[string]Nomination{}
	}
	if p.Rankings == nil {
		p.Rankings = map[string][]string{}
	}
	if p.Results == nil {
		p.Results = []Result{}
	}
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
