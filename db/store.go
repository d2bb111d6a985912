// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/quickly-rank/models"
)

// segmentPattern restricts path segments to characters that need no
// escaping in either dialect's JSON path syntax.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// PollStore keeps one JSON document per poll, addressable by field path,
// with a fixed expiry set at creation.
type PollStore struct {
	db      *sql.DB
	dialect *dialect
	now     func() time.Time
}

// NewPollStore wraps an open database of the given type.
func NewPollStore(db *sql.DB, databaseType string) (*PollStore, error) {
	d, err := dialectFor(databaseType)
	if err != nil {
		return nil, err
	}
	return &PollStore{
		db:      db,
		dialect: d,
		now:     time.Now,
	}, nil
}

// Create writes the initial document and sets it to expire after ttl.
// Nothing refreshes that expiry afterwards. An ID held by a live poll is
// never overwritten; the caller gets a Conflict and must pick another.
func (s *PollStore) Create(ctx context.Context, poll *models.Poll, ttl time.Duration) error {
	doc, err := json.Marshal(poll)
	if err != nil {
		return models.NewBadRequestError("poll document is not serializable")
	}

	now := s.now()
	expiresAt := now.Add(ttl).UnixMilli()

	slog.Debug("creating poll document", "poll_id", poll.ID, "ttl", ttl)

	res, err := s.db.ExecContext(ctx, s.dialect.create, poll.ID, string(doc), expiresAt, now.UnixMilli())
	if err != nil {
		slog.Error("failed to create poll", "poll_id", poll.ID, "error", err)
		return models.NewStoreUnavailableError("failed to create poll", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.NewStoreUnavailableError("failed to read create result", err)
	}
	if n == 0 {
		return models.NewConflictError("poll ID %s is taken", poll.ID)
	}
	return nil
}

// Get returns the full current document.
func (s *PollStore) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, s.dialect.get, pollID, s.now().UnixMilli()).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("poll %s not found", pollID)
	}
	if err != nil {
		slog.Error("failed to get poll", "poll_id", pollID, "error", err)
		return nil, models.NewStoreUnavailableError("failed to get poll", err)
	}

	var poll models.Poll
	if err := json.Unmarshal(doc, &poll); err != nil {
		slog.Error("corrupt poll document", "poll_id", pollID, "error", err)
		return nil, models.NewStoreUnavailableError("failed to decode poll", err)
	}
	poll.Normalize()

	return &poll, nil
}

// SetField writes value at path inside the document in place.
func (s *PollStore) SetField(ctx context.Context, pollID string, value any, path ...string) error {
	return s.SetFieldWhen(ctx, pollID, models.AnyStage, value, path...)
}

// SetFieldWhen writes value at path only if the poll is in stage at the
// moment of the write. A poll in another stage gets the stage's Conflict.
func (s *PollStore) SetFieldWhen(ctx context.Context, pollID string, stage models.Stage, value any, path ...string) error {
	if err := validatePath(path); err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return models.NewBadRequestError("value for %v is not serializable", path)
	}

	args := s.dialect.setArgs(pollID, s.dialect.pathArg(path), string(encoded), s.now().UnixMilli())
	res, err := s.db.ExecContext(ctx, s.dialect.guarded(s.dialect.setField, stage), args...)
	if err != nil {
		slog.Error("failed to set poll field", "poll_id", pollID, "path", path, "error", err)
		return models.NewStoreUnavailableError("failed to update poll", err)
	}

	if err := s.expectRow(res, "poll %s not found", pollID); err != nil {
		return s.explainMiss(ctx, pollID, stage, err)
	}
	return nil
}

// DeleteField removes path from the document. It fails with NotFound when
// either the poll or the path is absent.
func (s *PollStore) DeleteField(ctx context.Context, pollID string, path ...string) error {
	return s.DeleteFieldWhen(ctx, pollID, models.AnyStage, path...)
}

// DeleteFieldWhen removes path only if the poll is in stage at the moment
// of the write.
func (s *PollStore) DeleteFieldWhen(ctx context.Context, pollID string, stage models.Stage, path ...string) error {
	if err := validatePath(path); err != nil {
		return err
	}

	args := s.dialect.deleteArgs(pollID, s.dialect.pathArg(path), s.now().UnixMilli())
	res, err := s.db.ExecContext(ctx, s.dialect.guarded(s.dialect.deleteField, stage), args...)
	if err != nil {
		slog.Error("failed to delete poll field", "poll_id", pollID, "path", path, "error", err)
		return models.NewStoreUnavailableError("failed to update poll", err)
	}

	if err := s.expectRow(res, "%v not found in poll %s", path, pollID); err != nil {
		return s.explainMiss(ctx, pollID, stage, err)
	}
	return nil
}

// explainMiss turns a guarded write that matched no row into the reason:
// the poll is gone, it left the stage, or (for deletes) the path was absent.
func (s *PollStore) explainMiss(ctx context.Context, pollID string, stage models.Stage, miss error) error {
	if stage == models.AnyStage || !errors.Is(miss, models.ErrNotFound) {
		return miss
	}

	poll, err := s.Get(ctx, pollID)
	if err != nil {
		return err
	}
	if !stage.Holds(poll) {
		return stage.Violation(poll)
	}
	return miss
}

// Delete removes the poll entirely.
func (s *PollStore) Delete(ctx context.Context, pollID string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.deletePoll, pollID, s.now().UnixMilli())
	if err != nil {
		slog.Error("failed to delete poll", "poll_id", pollID, "error", err)
		return models.NewStoreUnavailableError("failed to delete poll", err)
	}

	return s.expectRow(res, "poll %s not found", pollID)
}

// Sweep physically removes expired documents. Expired polls are already
// invisible to every other operation; this only reclaims space.
func (s *PollStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.sweep, s.now().UnixMilli())
	if err != nil {
		return 0, models.NewStoreUnavailableError("failed to sweep polls", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.NewStoreUnavailableError("failed to sweep polls", err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *PollStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				if !errors.Is(ctx.Err(), context.Canceled) {
					slog.Warn("poll sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				slog.Info("swept expired polls", "count", n)
			}
		}
	}
}

func (s *PollStore) expectRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return models.NewStoreUnavailableError("failed to read update result", err)
	}
	if n == 0 {
		return models.NewNotFoundError(format, args...)
	}
	return nil
}

func validatePath(path []string) error {
	if len(path) == 0 {
		return models.NewNotFoundError("empty field path")
	}
	for _, seg := range path {
		if !segmentPattern.MatchString(seg) {
			return models.NewNotFoundError("no field %q", seg)
		}
	}
	return nil
}
