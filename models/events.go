// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "encoding/json"

// Outbound event types
const (
	EventPollUpdated   = "poll_updated"
	EventPollCancelled = "poll_cancelled"
	EventException     = "exception"
)

// Inbound action types
const (
	ActionNominate          = "nominate"
	ActionRemoveNomination  = "remove_nomination"
	ActionRemoveParticipant = "remove_participant"
	ActionStartVote         = "start_vote"
	ActionSubmitRankings    = "submit_rankings"
	ActionClosePoll         = "close_poll"
	ActionCancelPoll        = "cancel_poll"
)

// Event is a message sent to websocket clients
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// InboundMessage is a message received from a websocket client. Payload is
// decoded later according to Type.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ExceptionPayload is delivered only to the connection whose action failed.
type ExceptionPayload struct {
	Type    ErrorCode `json:"type"`
	Message string    `json:"message"`
	Action  string    `json:"action,omitempty"`
}

type NominatePayload struct {
	Text string `json:"text"`
}

// IDPayload addresses a nomination or participant by ID.
type IDPayload struct {
	ID string `json:"id"`
}

type RankingsPayload struct {
	Rankings []string `json:"rankings"`
}

func PollUpdated(poll *Poll) Event {
	return Event{Type: EventPollUpdated, Payload: poll}
}

func PollCancelled(pollID string) Event {
	return Event{Type: EventPollCancelled, Payload: map[string]string{"pollID": pollID}}
}

func Exception(action string, err error) Event {
	return Event{Type: EventException, Payload: ExceptionPayload{
		Type:    CodeOf(err),
		Message: PublicMessage(err),
		Action:  action,
	}}
}
