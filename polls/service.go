// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/quickly-rank/auth"
	"github.com/danielhkuo/quickly-rank/models"
	"github.com/danielhkuo/quickly-rank/tally"
)

// createAttempts bounds retries when a generated poll ID is already taken.
const createAttempts = 5

// Store is the document storage the service needs. db.PollStore implements it.
// The When variants apply a write only while the poll is still in the given
// stage, so a stage change between a read and a write cannot slip through.
type Store interface {
	Create(ctx context.Context, poll *models.Poll, ttl time.Duration) error
	Get(ctx context.Context, pollID string) (*models.Poll, error)
	SetField(ctx context.Context, pollID string, value any, path ...string) error
	SetFieldWhen(ctx context.Context, pollID string, stage models.Stage, value any, path ...string) error
	DeleteField(ctx context.Context, pollID string, path ...string) error
	DeleteFieldWhen(ctx context.Context, pollID string, stage models.Stage, path ...string) error
	Delete(ctx context.Context, pollID string) error
}

// Service enforces every poll rule. Handlers and the gateway call it and
// never touch the store directly.
type Service struct {
	store Store
	ttl   time.Duration

	now             func() time.Time
	newPollID       func() (string, error)
	newNominationID func() (string, error)
}

func NewService(store Store, ttl time.Duration) *Service {
	return &Service{
		store:           store,
		ttl:             ttl,
		now:             time.Now,
		newPollID:       auth.GeneratePollID,
		newNominationID: auth.GenerateNominationID,
	}
}

// CreatePoll writes a fresh poll owned by ownerID with the owner already
// joined.
func (s *Service) CreatePoll(ctx context.Context, topic string, votesPerVoter int, ownerID, ownerName string) (*models.Poll, error) {
	topic = strings.TrimSpace(topic)
	ownerName = strings.TrimSpace(ownerName)

	if err := validateLength("topic", topic, models.MaxTopicLength); err != nil {
		return nil, err
	}
	if votesPerVoter < 1 || votesPerVoter > models.MaxVotesPerVoter {
		return nil, models.NewBadRequestError("votesPerVoter must be between 1 and %d", models.MaxVotesPerVoter)
	}
	if err := validateLength("name", ownerName, models.MaxNameLength); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, models.NewBadRequestError("owner ID is required")
	}

	now := s.now()
	poll := &models.Poll{
		Topic:         topic,
		VotesPerVoter: votesPerVoter,
		OwnerID:       ownerID,
		Participants:  map[string]string{ownerID: ownerName},
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	poll.Normalize()

	// The store refuses IDs held by live polls, so a collision is retried
	// with a fresh ID rather than overwriting.
	for i := 0; i < createAttempts; i++ {
		pollID, err := s.newPollID()
		if err != nil {
			return nil, err
		}
		poll.ID = pollID

		err = s.store.Create(ctx, poll, s.ttl)
		if errors.Is(err, models.ErrConflict) {
			slog.Debug("poll ID collision", "poll_id", pollID)
			continue
		}
		if err != nil {
			return nil, err
		}

		slog.Info("poll created", "poll_id", pollID, "owner_id", ownerID, "votes_per_voter", votesPerVoter)
		return poll, nil
	}
	return nil, models.NewConflictError("could not allocate a poll ID")
}

func (s *Service) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	return s.store.Get(ctx, pollID)
}

// JoinPoll adds a participant. Late joins after voting starts are rejected.
func (s *Service) JoinPoll(ctx context.Context, pollID, participantID, name string) (*models.Poll, error) {
	name = strings.TrimSpace(name)
	if err := validateLength("name", name, models.MaxNameLength); err != nil {
		return nil, err
	}

	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, models.NewConflictError("poll %s has already started", pollID)
	}

	return s.addParticipant(ctx, pollID, participantID, name)
}

// RejoinPoll restores a participant entry for a holder of a valid token. It
// is allowed at any stage of the poll.
func (s *Service) RejoinPoll(ctx context.Context, pollID, participantID, name string) (*models.Poll, error) {
	return s.addParticipant(ctx, pollID, participantID, name)
}

func (s *Service) addParticipant(ctx context.Context, pollID, participantID, name string) (*models.Poll, error) {
	if err := s.store.SetField(ctx, pollID, name, models.FieldParticipants, participantID); err != nil {
		return nil, err
	}

	slog.Debug("participant joined", "poll_id", pollID, "participant_id", participantID)
	return s.store.Get(ctx, pollID)
}

// RemoveParticipant deletes a participant entry. It returns a nil poll when
// the participant was not there, meaning nothing observable changed.
func (s *Service) RemoveParticipant(ctx context.Context, pollID, participantID string) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if _, ok := poll.Participants[participantID]; !ok {
		return nil, nil
	}

	err = s.store.DeleteField(ctx, pollID, models.FieldParticipants, participantID)
	if errors.Is(err, models.ErrNotFound) {
		// Removed concurrently. Only a vanished poll is worth reporting.
		if _, getErr := s.store.Get(ctx, pollID); getErr != nil {
			return nil, getErr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("participant removed", "poll_id", pollID, "participant_id", participantID)
	return s.store.Get(ctx, pollID)
}

// AddNomination stores a new candidate proposed by participantID.
func (s *Service) AddNomination(ctx context.Context, pollID, participantID, text string) (*models.Poll, error) {
	text = strings.TrimSpace(text)
	if err := validateLength("nomination", text, models.MaxNominationLen); err != nil {
		return nil, err
	}

	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, models.NewConflictError("nominations are closed for poll %s", pollID)
	}

	nominationID, err := s.newNominationID()
	if err != nil {
		return nil, err
	}

	nomination := models.Nomination{
		ProposedBy: participantID,
		Text:       text,
		CreatedAt:  s.now(),
	}
	if err := s.store.SetFieldWhen(ctx, pollID, models.StageNominating, nomination, models.FieldNominations, nominationID); err != nil {
		return nil, err
	}

	slog.Info("nomination added", "poll_id", pollID, "nomination_id", nominationID, "participant_id", participantID)
	return s.store.Get(ctx, pollID)
}

// RemoveNomination deletes a candidate. Rankings that already reference it
// are left alone; the tally skips dangling IDs.
func (s *Service) RemoveNomination(ctx context.Context, pollID, nominationID string) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, models.NewConflictError("nominations are closed for poll %s", pollID)
	}

	if err := s.store.DeleteFieldWhen(ctx, pollID, models.StageNominating, models.FieldNominations, nominationID); err != nil {
		return nil, err
	}

	slog.Info("nomination removed", "poll_id", pollID, "nomination_id", nominationID)
	return s.store.Get(ctx, pollID)
}

// StartPoll opens voting. It succeeds exactly once per poll.
func (s *Service) StartPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, models.NewConflictError("poll %s has already started", pollID)
	}

	if err := s.store.SetFieldWhen(ctx, pollID, models.StageNominating, true, models.FieldHasStarted); err != nil {
		return nil, err
	}

	slog.Info("poll started", "poll_id", pollID, "nominations", len(poll.Nominations))
	return s.store.Get(ctx, pollID)
}

// SubmitRankings replaces participantID's ballot. Over-length lists are
// rejected, never truncated.
func (s *Service) SubmitRankings(ctx context.Context, pollID, participantID string, rankings []string) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.HasStarted {
		return nil, models.NewBadRequestError("voting has not started")
	}
	if poll.IsClosed() {
		return nil, models.NewConflictError("poll %s is closed", pollID)
	}
	if err := validateRankings(poll, rankings); err != nil {
		return nil, err
	}

	if err := s.store.SetFieldWhen(ctx, pollID, models.StageVoting, rankings, models.FieldRankings, participantID); err != nil {
		return nil, err
	}

	slog.Debug("rankings submitted", "poll_id", pollID, "participant_id", participantID, "count", len(rankings))
	return s.store.Get(ctx, pollID)
}

func validateRankings(poll *models.Poll, rankings []string) error {
	if len(rankings) == 0 {
		return models.NewBadRequestError("rankings must not be empty")
	}
	if len(rankings) > poll.VotesPerVoter {
		return models.NewBadRequestError("at most %d rankings allowed, got %d", poll.VotesPerVoter, len(rankings))
	}

	seen := make(map[string]bool, len(rankings))
	for _, id := range rankings {
		if _, ok := poll.Nominations[id]; !ok {
			return models.NewBadRequestError("unknown nomination %q", id)
		}
		if seen[id] {
			return models.NewBadRequestError("nomination %q ranked twice", id)
		}
		seen[id] = true
	}
	return nil
}

// ComputeResults tallies the ballots and publishes the results. Once
// written, results never change and later calls return them as stored.
func (s *Service) ComputeResults(ctx context.Context, pollID string) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.HasStarted {
		return nil, models.NewConflictError("poll %s has not started", pollID)
	}
	if poll.IsClosed() {
		return poll, nil
	}

	results := tally.Compute(poll.Nominations, poll.Rankings, poll.VotesPerVoter)
	err = s.store.SetFieldWhen(ctx, pollID, models.StageVoting, results, models.FieldResults)
	if errors.Is(err, models.ErrConflict) {
		// Closed by a concurrent call; its results stand.
		return s.store.Get(ctx, pollID)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("poll closed", "poll_id", pollID, "ballots", len(poll.Rankings), "candidates", len(results))
	return s.store.Get(ctx, pollID)
}

// CancelPoll deletes the poll. Every later operation on it is NotFound.
func (s *Service) CancelPoll(ctx context.Context, pollID string) error {
	if err := s.store.Delete(ctx, pollID); err != nil {
		return err
	}

	slog.Info("poll cancelled", "poll_id", pollID)
	return nil
}

func validateLength(field, value string, max int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return models.NewBadRequestError("%s is required", field)
	}
	if n > max {
		return models.NewBadRequestError("%s must be at most %d characters", field, max)
	}
	return nil
}
