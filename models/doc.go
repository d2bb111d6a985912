// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the poll document, wire events, request/response
types, and the error taxonomy shared by every layer.

# Poll Document

A Poll is stored as one JSON document. Its top-level field names are also
the paths the store writes to:

	participants  map participantID -> display name
	nominations   map nominationID  -> {proposedBy, text, createdAt}
	rankings      map participantID -> ordered nomination IDs
	hasStarted    bool, flips to true once
	results       ordered [{nominationID, nominationText, score}]

topic, votesPerVoter and ownerID are written once at creation.

# Request Types

  - CreatePollRequest: topic, votesPerVoter, name
  - JoinPollRequest: pollID, name

# Response Types

  - CreatePollResponse / JoinPollResponse: poll, accessToken
  - RejoinPollResponse: poll
  - ErrorResponse: error, message

# Events

Outbound websocket events:

	poll_updated    payload: the full poll
	poll_cancelled  payload: {pollID}
	exception       payload: {type, message, action}, sender only

Inbound actions: nominate, remove_nomination, remove_participant,
start_vote, submit_rankings, close_poll, cancel_poll.

# Errors

Every failure is a *PollError with one of the codes NotFound, Conflict,
BadRequest, Unauthorized or StoreUnavailable. Match with the sentinels:

	if errors.Is(err, models.ErrConflict) { ... }

Only StoreUnavailable is Retryable.
*/
package models
