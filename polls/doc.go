// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package polls holds the session rules for a ranked-choice poll.

Service is the only place poll semantics live. It reads the document through
a Store, checks the transition, and writes exactly one field path:

	svc := polls.NewService(store, cfg.PollDuration)
	poll, err := svc.JoinPoll(ctx, pollID, participantID, "Pat")

Lifecycle:

	created → nominating → started (voting) → closed (results) → expired
	                  ↘ cancelled (deleted) at any point

Every operation returns the refreshed poll so callers can broadcast it.
RemoveParticipant returns a nil poll when nothing changed. Errors are
models.PollError values and are passed through untranslated.
*/
package polls
