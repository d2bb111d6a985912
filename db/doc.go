// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db stores poll documents with per-poll expiry.

# Connecting

Open picks the driver for the configured database type and pings it:

	conn, err := db.Open(db.TypePostgres, cfg.DatabaseURL)
	if err := db.CreateSchema(conn, db.TypePostgres); err != nil {
		log.Fatal(err)
	}
	store, err := db.NewPollStore(conn, db.TypePostgres)

Supported types are "postgres" (lib/pq, JSONB) and "sqlite" (modernc.org/sqlite,
JSON1). CreateSchema is safe to call multiple times.

# Table

	polls(id TEXT PRIMARY KEY, doc JSON, expires_at unix-millis)

One row per poll. The doc column holds the whole models.Poll document.

# Field Writes

Mutations address one path inside the document and run as a single UPDATE:

	store.SetField(ctx, pollID, "Alice", "participants", userID)
	store.DeleteField(ctx, pollID, "nominations", nominationID)

Postgres uses jsonb_set and #-, SQLite uses json_set and json_remove. Two
writers on different paths never overwrite each other; two writers on the
same path resolve last-write-wins. Path segments must match
[A-Za-z0-9_-]{1,64}.

# Expiry

Create sets expires_at = now + ttl. No other operation touches it. Every
query filters on expires_at, so an expired poll is NotFound immediately.
RunSweeper deletes expired rows in the background:

	go store.RunSweeper(ctx, 5*time.Minute)

# Errors

Missing polls and paths return models.ErrNotFound. Any driver failure
returns models.ErrStoreUnavailable with the cause wrapped.
*/
package db
