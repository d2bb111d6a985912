// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/quickly-rank/auth"
	"github.com/danielhkuo/quickly-rank/middleware"
	"github.com/danielhkuo/quickly-rank/models"
)

// Sessions is the part of polls.Service the HTTP surface uses.
type Sessions interface {
	CreatePoll(ctx context.Context, topic string, votesPerVoter int, ownerID, ownerName string) (*models.Poll, error)
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
	JoinPoll(ctx context.Context, pollID, participantID, name string) (*models.Poll, error)
	RejoinPoll(ctx context.Context, pollID, participantID, name string) (*models.Poll, error)
}

type PollHandler struct {
	sessions Sessions
	tokens   *auth.TokenIssuer
	gate     *auth.Gate
}

func NewPollHandler(sessions Sessions, tokens *auth.TokenIssuer, gate *auth.Gate) *PollHandler {
	return &PollHandler{sessions: sessions, tokens: tokens, gate: gate}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ownerID, err := auth.GenerateParticipantID()
	if err != nil {
		slog.Error("failed to generate participant ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	poll, err := h.sessions.CreatePoll(r.Context(), req.Topic, req.VotesPerVoter, ownerID, req.Name)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	token, err := h.tokens.Sign(poll.ID, ownerID, poll.Participants[ownerID])
	if err != nil {
		slog.Error("failed to sign access token", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		Poll:        poll,
		AccessToken: token,
	})
}

// JoinPoll handles POST /polls/join
func (h *PollHandler) JoinPoll(w http.ResponseWriter, r *http.Request) {
	var req models.JoinPollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pollID := strings.ToUpper(strings.TrimSpace(req.PollID))
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollID is required")
		return
	}

	participantID, err := auth.GenerateParticipantID()
	if err != nil {
		slog.Error("failed to generate participant ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join poll")
		return
	}

	poll, err := h.sessions.JoinPoll(r.Context(), pollID, participantID, req.Name)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	token, err := h.tokens.Sign(poll.ID, participantID, poll.Participants[participantID])
	if err != nil {
		slog.Error("failed to sign access token", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join poll")
		return
	}

	slog.Info("participant joined", "poll_id", poll.ID, "participant_id", participantID)

	middleware.JSONResponse(w, http.StatusOK, models.JoinPollResponse{
		Poll:        poll,
		AccessToken: token,
	})
}

// RejoinPoll handles POST /polls/rejoin. The bearer token names the poll
// and participant.
func (h *PollHandler) RejoinPoll(w http.ResponseWriter, r *http.Request) {
	identity, err := h.gate.Authenticate(middleware.BearerToken(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	poll, err := h.sessions.RejoinPoll(r.Context(), identity.PollID, identity.ParticipantID, identity.Name)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RejoinPollResponse{Poll: poll})
}

// GetPoll handles GET /polls/{id}. Only holders of a token for that poll
// may read it.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	identity, err := h.gate.Authenticate(middleware.BearerToken(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if identity.PollID != pollID {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "token is not valid for this poll")
		return
	}

	poll, err := h.sessions.GetPoll(r.Context(), pollID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, poll)
}
