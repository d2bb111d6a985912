// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Rank API.

# Handler Types

PollHandler covers the request/response side of a poll. Everything that
happens after a participant is connected goes through the gateway package.

	pollHandler := handlers.NewPollHandler(service, issuer, gate)

# Endpoints

	POST /polls         → CreatePoll (returns poll + accessToken, 201)
	POST /polls/join    → JoinPoll   (returns poll + accessToken; 409 once started)
	POST /polls/rejoin  → RejoinPoll (Bearer token; allowed at any stage)
	GET  /polls/{id}    → GetPoll    (Bearer token for that poll)

Participant IDs are UUIDs generated here. The access token is the only
credential a participant holds; it carries the poll ID, participant ID
and display name.

# Error Handling

Service errors pass through middleware.WriteError, so every failure is

	{"error": "Conflict", "message": "poll ABC123 has already started"}

with the status matching the error code. Store failures never expose the
driver error.
*/
package handlers
