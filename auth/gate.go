// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"log/slog"

	"github.com/danielhkuo/quickly-rank/models"
)

// PollReader loads the current state of a poll.
type PollReader interface {
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
}

// Gate verifies bearer tokens and checks poll ownership. It keeps no
// session state of its own.
type Gate struct {
	tokens *TokenIssuer
	polls  PollReader
}

func NewGate(tokens *TokenIssuer, polls PollReader) *Gate {
	return &Gate{tokens: tokens, polls: polls}
}

// Authenticate returns the identity carried by token. Any missing,
// malformed, badly signed or expired token is Unauthorized.
func (g *Gate) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, models.NewUnauthorizedError("missing access token")
	}

	claims, err := g.tokens.parse(token)
	if err != nil {
		slog.Debug("token rejected", "error", err)
		return Identity{}, models.NewUnauthorizedError("invalid access token")
	}
	if claims.Subject == "" || claims.PollID == "" {
		return Identity{}, models.NewUnauthorizedError("invalid access token")
	}

	return Identity{
		ParticipantID: claims.Subject,
		PollID:        claims.PollID,
		Name:          claims.Name,
	}, nil
}

// AuthorizeOwner succeeds only when subject owns pollID.
func (g *Gate) AuthorizeOwner(ctx context.Context, pollID, subject string) error {
	poll, err := g.polls.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.OwnerID != subject {
		slog.Warn("owner check failed", "poll_id", pollID, "subject", subject)
		return models.NewUnauthorizedError("only the poll owner can do that")
	}
	return nil
}
