// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Rank API server.

Quickly Rank runs short-lived ranked-choice polls. An owner creates a poll,
participants join with a code and propose nominations, everyone ranks the
nominations, and the owner closes the poll to publish instant-runoff
results. Live state is pushed to every participant over a websocket.

# Starting the Server

	JWT_SECRET=... DATABASE_URL=quickly-rank.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -jwt-secret ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file path or PostgreSQL connection string
  - JWT_SECRET (-jwt-secret): Secret used to sign access tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - POLL_DURATION (-poll-duration): Poll lifetime in seconds (default: 7200)
  - SWEEP_INTERVAL (-sweep-interval): Expired poll cleanup (default: 5m)
  - CLIENT_ORIGINS (-origins): Comma separated allowed origins (default: *)
  - LOG_LEVEL (-log-level): debug, info, warn or error

Values may also come from a .env file (-env-file).

# Architecture

  - handlers: HTTP endpoints for create, join, rejoin and poll lookup
  - gateway: Websocket rooms and live poll actions
  - polls: Session rules shared by handlers and the gateway
  - tally: Instant-runoff results
  - auth: Access tokens, ID generation and owner checks
  - db: Poll document storage with expiry
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON and error helpers
  - models: Poll document, errors and events
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
