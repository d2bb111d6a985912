// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/danielhkuo/quickly-rank/models"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// dialect holds the SQL for one database type. Every field write is a
// single UPDATE using the database's JSON path functions, so independent
// fields never go through a read-modify-write cycle.
type dialect struct {
	name        string
	driver      string
	schema      string
	create      string
	get         string
	setField    string
	deleteField string
	deletePoll  string
	sweep       string

	// stages are extra WHERE conditions that make a field write apply only
	// while the poll is still in that stage.
	stages map[models.Stage]string

	// pathArg converts document path segments into the bind argument the
	// JSON functions expect.
	pathArg func(path []string) any
	// setArgs and deleteArgs order the bind arguments for setField/deleteField.
	setArgs    func(pollID string, path any, value string, now int64) []any
	deleteArgs func(pollID string, path any, now int64) []any
}

func dialectFor(databaseType string) (*dialect, error) {
	switch databaseType {
	case TypeSQLite, "":
		return sqliteDialect, nil
	case TypePostgres:
		return postgresDialect, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", databaseType)
	}
}

// guarded appends the condition for stage to a field write query.
func (d *dialect) guarded(query string, stage models.Stage) string {
	cond, ok := d.stages[stage]
	if !ok {
		return query
	}
	return query + " AND (" + cond + ")"
}

// DriverName returns the database/sql driver registered for databaseType.
func DriverName(databaseType string) (string, error) {
	d, err := dialectFor(databaseType)
	if err != nil {
		return "", err
	}
	return d.driver, nil
}

var sqliteDialect = &dialect{
	name:   TypeSQLite,
	driver: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    doc TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_polls_expires_at ON polls(expires_at);
`,
	create: `
		INSERT INTO polls (id, doc, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, expires_at = excluded.expires_at
		WHERE polls.expires_at <= ?
	`,
	get: `SELECT doc FROM polls WHERE id = ? AND expires_at > ?`,
	setField: `
		UPDATE polls SET doc = json_set(doc, ?, json(?))
		WHERE id = ? AND expires_at > ?
	`,
	deleteField: `
		UPDATE polls SET doc = json_remove(doc, ?)
		WHERE id = ? AND expires_at > ? AND json_type(doc, ?) IS NOT NULL
	`,
	deletePoll: `DELETE FROM polls WHERE id = ? AND expires_at > ?`,
	sweep:      `DELETE FROM polls WHERE expires_at <= ?`,
	stages: map[models.Stage]string{
		models.StageNominating: `COALESCE(json_extract(doc, '$.hasStarted'), 0) = 0`,
		models.StageVoting: `COALESCE(json_extract(doc, '$.hasStarted'), 0) = 1
			AND COALESCE(json_array_length(doc, '$.results'), 0) = 0`,
	},
	pathArg: func(path []string) any {
		var b strings.Builder
		b.WriteString("$")
		for _, seg := range path {
			b.WriteString(`."`)
			b.WriteString(seg)
			b.WriteString(`"`)
		}
		return b.String()
	},
	setArgs: func(pollID string, path any, value string, now int64) []any {
		return []any{path, value, pollID, now}
	},
	deleteArgs: func(pollID string, path any, now int64) []any {
		return []any{path, pollID, now, path}
	},
}

var postgresDialect = &dialect{
	name:   TypePostgres,
	driver: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    doc JSONB NOT NULL,
    expires_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_polls_expires_at ON polls(expires_at);
`,
	create: `
		INSERT INTO polls (id, doc, expires_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, expires_at = EXCLUDED.expires_at
		WHERE polls.expires_at <= $4
	`,
	get: `SELECT doc FROM polls WHERE id = $1 AND expires_at > $2`,
	setField: `
		UPDATE polls SET doc = jsonb_set(doc, $1::text[], $2::jsonb, true)
		WHERE id = $3 AND expires_at > $4
	`,
	deleteField: `
		UPDATE polls SET doc = doc #- $1::text[]
		WHERE id = $2 AND expires_at > $3 AND doc #> $1::text[] IS NOT NULL
	`,
	deletePoll: `DELETE FROM polls WHERE id = $1 AND expires_at > $2`,
	sweep:      `DELETE FROM polls WHERE expires_at <= $1`,
	stages: map[models.Stage]string{
		models.StageNominating: `NOT COALESCE((doc->>'hasStarted')::boolean, false)`,
		models.StageVoting: `COALESCE((doc->>'hasStarted')::boolean, false)
			AND CASE jsonb_typeof(doc->'results') WHEN 'array' THEN jsonb_array_length(doc->'results') ELSE 0 END = 0`,
	},
	pathArg: func(path []string) any {
		return pq.Array(path)
	},
	setArgs: func(pollID string, path any, value string, now int64) []any {
		return []any{path, value, pollID, now}
	},
	deleteArgs: func(pollID string, path any, now int64) []any {
		return []any{path, pollID, now}
	},
}
