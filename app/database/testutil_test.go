package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a migrated database in a temporary directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// seedTarget registers a target watched by the given users.
func seedTarget(t *testing.T, db *DB, name, fullName string, watchers ...string) *Target {
	t.Helper()

	repo := NewTargetRepository(db)
	target, err := repo.UpsertTarget(context.Background(), name, fullName, SourceTypeGitHub)
	if err != nil {
		t.Fatalf("failed to seed target: %v", err)
	}

	if len(watchers) > 0 {
		if err := repo.SetWatchers(context.Background(), target.ID, watchers); err != nil {
			t.Fatalf("failed to seed watchers: %v", err)
		}
	}

	return target
}

func newCandidate(targetID, externalID string, kind ActivityKind, occurredAt time.Time) ActivityCandidate {
	return ActivityCandidate{
		TargetID:        targetID,
		ExternalEventID: externalID,
		Kind:            kind,
		Title:           "Title " + externalID,
		Body:            "Body " + externalID,
		URL:             "https://github.com/owner/repo/" + externalID,
		Author:          "octocat",
		RawPayload:      `{"id":` + externalID + `}`,
		OccurredAt:      occurredAt,
	}
}
