// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Rank API.

# Route Registration

NewRouter builds the session service, token issuer, auth gate and
websocket gateway over a poll store and registers every endpoint:

	mux, live, err := router.NewRouter(store, cfg)
	defer live.Close()

# Endpoints

Health:

	GET /health

Poll sessions:

	POST /polls        - Create poll, returns owner token
	POST /polls/join   - Join by poll ID, returns participant token
	POST /polls/rejoin - Re-enter with an existing token
	GET  /polls/{id}   - Current poll document (token required)

Live updates:

	GET /polls/live?token=... - Websocket for poll events and actions
*/
package router
