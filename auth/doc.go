// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth issues and verifies poll access tokens and generates IDs.

# Access Tokens

Every participant gets an HS256 JWT when they create or join a poll:

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.PollDuration)
	token, err := issuer.Sign(pollID, participantID, name)

Claims are {sub: participantID, pollID, name, iat, exp}. The token lives as
long as the poll.

# Gate

Gate turns a token back into an Identity and checks ownership:

	gate := auth.NewGate(issuer, service)
	id, err := gate.Authenticate(token)
	err = gate.AuthorizeOwner(ctx, id.PollID, id.ParticipantID)

Authenticate fails with models.ErrUnauthorized for any missing, malformed,
badly signed or expired token. AuthorizeOwner loads the poll on every call
and fails with models.ErrUnauthorized unless the subject is the owner.
Nothing is cached between calls.

# IDs

	auth.GeneratePollID()        // 6 chars, A-Z 0-9
	auth.GenerateParticipantID() // UUID v4
	auth.GenerateNominationID()  // 16 hex chars
*/
package auth
