// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-rank/models"
)

// setupTestStore opens a fresh SQLite file in a temp directory
func setupTestStore(t *testing.T) *PollStore {
	t.Helper()

	conn, err := Open(TypeSQLite, filepath.Join(t.TempDir(), "polls.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := CreateSchema(conn, TypeSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	store, err := NewPollStore(conn, TypeSQLite)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func newTestPoll(id string) *models.Poll {
	poll := &models.Poll{
		ID:            id,
		Topic:         "Lunch",
		VotesPerVoter: 2,
		OwnerID:       "owner-1",
		Participants:  map[string]string{"owner-1": "Olive"},
	}
	poll.Normalize()
	return poll
}

func TestCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newTestPoll("ABC123"), time.Hour); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	poll, err := store.Get(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if poll.Topic != "Lunch" || poll.VotesPerVoter != 2 || poll.OwnerID != "owner-1" {
		t.Errorf("unexpected poll: %+v", poll)
	}
	if poll.Participants["owner-1"] != "Olive" {
		t.Errorf("expected owner participant, got %v", poll.Participants)
	}
	if len(poll.Nominations) != 0 || len(poll.Rankings) != 0 || len(poll.Results) != 0 {
		t.Errorf("expected empty collections, got %+v", poll)
	}
	if poll.HasStarted {
		t.Error("expected hasStarted = false")
	}
}

func TestGetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "NOPE00")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() error = %v, want NotFound", err)
	}
}

func TestSetField(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Create(ctx, newTestPoll("ABC123"), time.Hour)

	tests := []struct {
		name  string
		value any
		path  []string
		check func(t *testing.T, p *models.Poll)
	}{
		{
			name:  "participant",
			value: "Pat",
			path:  []string{models.FieldParticipants, "user-2"},
			check: func(t *testing.T, p *models.Poll) {
				if p.Participants["user-2"] != "Pat" {
					t.Errorf("participants = %v", p.Participants)
				}
				if p.Participants["owner-1"] != "Olive" {
					t.Error("sibling participant was overwritten")
				}
			},
		},
		{
			name:  "nomination",
			value: models.Nomination{ProposedBy: "user-2", Text: "Tacos"},
			path:  []string{models.FieldNominations, "n1"},
			check: func(t *testing.T, p *models.Poll) {
				if p.Nominations["n1"].Text != "Tacos" {
					t.Errorf("nominations = %v", p.Nominations)
				}
			},
		},
		{
			name:  "rankings",
			value: []string{"n1"},
			path:  []string{models.FieldRankings, "user-2"},
			check: func(t *testing.T, p *models.Poll) {
				if len(p.Rankings["user-2"]) != 1 || p.Rankings["user-2"][0] != "n1" {
					t.Errorf("rankings = %v", p.Rankings)
				}
			},
		},
		{
			name:  "hasStarted",
			value: true,
			path:  []string{models.FieldHasStarted},
			check: func(t *testing.T, p *models.Poll) {
				if !p.HasStarted {
					t.Error("expected hasStarted = true")
				}
			},
		},
		{
			name:  "results",
			value: []models.Result{{NominationID: "n1", NominationText: "Tacos", Score: 1}},
			path:  []string{models.FieldResults},
			check: func(t *testing.T, p *models.Poll) {
				if len(p.Results) != 1 || p.Results[0].Score != 1 {
					t.Errorf("results = %v", p.Results)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SetField(ctx, "ABC123", tt.value, tt.path...); err != nil {
				t.Fatalf("SetField() error = %v", err)
			}
			poll, err := store.Get(ctx, "ABC123")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			tt.check(t, poll)
		})
	}
}

func TestSetFieldMissingPoll(t *testing.T) {
	store := setupTestStore(t)

	err := store.SetField(context.Background(), "NOPE00", true, models.FieldHasStarted)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("SetField() error = %v, want NotFound", err)
	}
}

func TestSetFieldRejectsUnsafeSegments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Create(ctx, newTestPoll("ABC123"), time.Hour)

	for _, seg := range []string{"", `a"b`, "a.b", "a]b", "$"} {
		t.Run(fmt.Sprintf("%q", seg), func(t *testing.T) {
			err := store.SetField(ctx, "ABC123", "x", models.FieldParticipants, seg)
			if !errors.Is(err, models.ErrNotFound) {
				t.Errorf("SetField() error = %v, want NotFound", err)
			}
		})
	}
}

func TestDeleteField(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Create(ctx, newTestPoll("ABC123"), time.Hour)
	store.SetField(ctx, "ABC123", "Pat", models.FieldParticipants, "user-2")

	if err := store.DeleteField(ctx, "ABC123", models.FieldParticipants, "user-2"); err != nil {
		t.Fatalf("DeleteField() error = %v", err)
	}

	poll, _ := store.Get(ctx, "ABC123")
	if _, ok := poll.Participants["user-2"]; ok {
		t.Error("participant still present after DeleteField")
	}
	if _, ok := poll.Participants["owner-1"]; !ok {
		t.Error("DeleteField removed a sibling entry")
	}

	// Second delete: path is gone
	err := store.DeleteField(ctx, "ABC123", models.FieldParticipants, "user-2")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second DeleteField() error = %v, want NotFound", err)
	}

	// Missing poll
	err = store.DeleteField(ctx, "NOPE00", models.FieldParticipants, "owner-1")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("DeleteField() on missing poll error = %v, want NotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Create(ctx, newTestPoll("ABC123"), time.Hour)

	if err := store.Delete(ctx, "ABC123"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "ABC123"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want NotFound", err)
	}
	if err := store.Delete(ctx, "ABC123"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want NotFound", err)
	}
}

func TestExpiry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Create(ctx, newTestPoll("ABC123"), time.Minute)

	// Writes do not extend the lifetime
	now = now.Add(50 * time.Second)
	if err := store.SetField(ctx, "ABC123", "Pat", models.FieldParticipants, "user-2"); err != nil {
		t.Fatalf("SetField() before expiry error = %v", err)
	}

	now = now.Add(11 * time.Second)
	if _, err := store.Get(ctx, "ABC123"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after expiry error = %v, want NotFound", err)
	}
	if err := store.SetField(ctx, "ABC123", true, models.FieldHasStarted); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("SetField() after expiry error = %v, want NotFound", err)
	}
	if err := store.Delete(ctx, "ABC123"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Delete() after expiry error = %v, want NotFound", err)
	}

	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep() removed %d rows, want 1", n)
	}
}

func TestConcurrentFieldWrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Create(ctx, newTestPoll("ABC123"), time.Hour)

	numWriters := 20
	var wg sync.WaitGroup
	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			if err := store.SetField(ctx, "ABC123", id, models.FieldParticipants, id); err != nil {
				t.Errorf("SetField(%s) error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	poll, err := store.Get(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	// every writer plus the owner
	if len(poll.Participants) != numWriters+1 {
		t.Errorf("expected %d participants, got %d", numWriters+1, len(poll.Participants))
	}
}

func TestStoreUnavailable(t *testing.T) {
	store := setupTestStore(t)
	store.db.Close()

	_, err := store.Get(context.Background(), "ABC123")
	if !errors.Is(err, models.ErrStoreUnavailable) {
		t.Errorf("Get() on closed db error = %v, want StoreUnavailable", err)
	}
	if !models.Retryable(err) {
		t.Error("expected StoreUnavailable to be retryable")
	}
}

func TestUnsupportedDatabaseType(t *testing.T) {
	if _, err := DriverName("mysql"); err == nil {
		t.Error("expected error for unsupported database type")
	}
	if name, _ := DriverName(TypePostgres); name != "postgres" {
		t.Errorf("DriverName(postgres) = %q", name)
	}
}

func TestCreateRefusesLivePoll(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Create(ctx, newTestPoll("ABC123"), time.Minute); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	other := newTestPoll("ABC123")
	other.Topic = "Dinner"
	if err := store.Create(ctx, other, time.Minute); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Create() over live poll error = %v, want Conflict", err)
	}
	if poll, _ := store.Get(ctx, "ABC123"); poll.Topic != "Lunch" {
		t.Errorf("live poll overwritten, topic = %q", poll.Topic)
	}

	// An expired row that was not swept yet can be reused
	now = now.Add(2 * time.Minute)
	if err := store.Create(ctx, other, time.Minute); err != nil {
		t.Fatalf("Create() over expired poll error = %v", err)
	}
	if poll, _ := store.Get(ctx, "ABC123"); poll.Topic != "Dinner" {
		t.Errorf("topic = %q, want Dinner", poll.Topic)
	}
}

func TestFieldWritesGuardedByStage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Create(ctx, newTestPoll("ABC123"), time.Hour)

	nomination := models.Nomination{ProposedBy: "owner-1", Text: "Tacos"}
	if err := store.SetFieldWhen(ctx, "ABC123", models.StageNominating, nomination, models.FieldNominations, "n1"); err != nil {
		t.Fatalf("SetFieldWhen() before start error = %v", err)
	}
	if err := store.SetFieldWhen(ctx, "ABC123", models.StageVoting, []string{"n1"}, models.FieldRankings, "owner-1"); !errors.Is(err, models.ErrConflict) {
		t.Errorf("rankings before start error = %v, want Conflict", err)
	}

	store.SetField(ctx, "ABC123", true, models.FieldHasStarted)

	if err := store.SetFieldWhen(ctx, "ABC123", models.StageNominating, nomination, models.FieldNominations, "n2"); !errors.Is(err, models.ErrConflict) {
		t.Errorf("nomination after start error = %v, want Conflict", err)
	}
	if err := store.DeleteFieldWhen(ctx, "ABC123", models.StageNominating, models.FieldNominations, "n1"); !errors.Is(err, models.ErrConflict) {
		t.Errorf("nomination removal after start error = %v, want Conflict", err)
	}
	if err := store.SetFieldWhen(ctx, "ABC123", models.StageVoting, []string{"n1"}, models.FieldRankings, "owner-1"); err != nil {
		t.Fatalf("rankings during voting error = %v", err)
	}

	store.SetField(ctx, "ABC123", []models.Result{{NominationID: "n1", NominationText: "Tacos", Score: 1}}, models.FieldResults)

	if err := store.SetFieldWhen(ctx, "ABC123", models.StageVoting, []string{"n1"}, models.FieldRankings, "user-2"); !errors.Is(err, models.ErrConflict) {
		t.Errorf("rankings after close error = %v, want Conflict", err)
	}

	poll, _ := store.Get(ctx, "ABC123")
	if len(poll.Nominations) != 1 || len(poll.Rankings) != 1 {
		t.Errorf("guarded writes leaked: nominations=%v rankings=%v", poll.Nominations, poll.Rankings)
	}

	// Missing poll and missing path keep their NotFound
	if err := store.SetFieldWhen(ctx, "NOPE00", models.StageVoting, true, models.FieldHasStarted); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing poll error = %v, want NotFound", err)
	}
	store.Create(ctx, newTestPoll("DEF456"), time.Hour)
	if err := store.DeleteFieldWhen(ctx, "DEF456", models.StageNominating, models.FieldNominations, "n9"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing path error = %v, want NotFound", err)
	}
}
