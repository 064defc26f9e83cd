package database

import (
	"context"
	"testing"
	"time"
)

func TestUpsertTarget(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)
	ctx := context.Background()

	first, err := repo.UpsertTarget(ctx, "go", "golang/go", SourceTypeGitHub)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if first.Name != "go" {
		t.Errorf("Expected name 'go', got '%s'", first.Name)
	}
	if first.FullName != "golang/go" {
		t.Errorf("Expected full name 'golang/go', got '%s'", first.FullName)
	}

	second, err := repo.UpsertTarget(ctx, "go", "golang/tools", SourceTypeGitHub)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Expected upsert to keep ID %s, got %s", first.ID, second.ID)
	}
	if second.FullName != "golang/tools" {
		t.Errorf("Expected full name to be updated, got '%s'", second.FullName)
	}

	count, err := repo.GetTargetCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 target, got %d", count)
	}
}

func TestGetTargetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)

	target, err := repo.GetTarget(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if target != nil {
		t.Errorf("Expected nil target, got %+v", target)
	}

	target, err = repo.GetTargetByName(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if target != nil {
		t.Errorf("Expected nil target, got %+v", target)
	}
}

func TestSetWatchersReplacesSet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)
	ctx := context.Background()

	target := seedTarget(t, db, "go", "golang/go", "alice", "bob")

	if err := repo.SetWatchers(ctx, target.ID, []string{"bob", "carol", ""}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT user_id FROM watches WHERE target_id = ? ORDER BY user_id`, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			t.Fatal(err)
		}
		users = append(users, user)
	}

	if len(users) != 2 || users[0] != "bob" || users[1] != "carol" {
		t.Errorf("Expected watchers [bob carol], got %v", users)
	}
}

func TestUpdateNextCheck(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)
	ctx := context.Background()

	target := seedTarget(t, db, "go", "golang/go")
	next := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := repo.UpdateNextCheck(ctx, target.ID, next); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	updated, err := repo.GetTarget(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.NextCheckAt == nil || !updated.NextCheckAt.Equal(next) {
		t.Errorf("Expected next check %v, got %v", next, updated.NextCheckAt)
	}
	if updated.LastCheckedAt == nil {
		t.Error("Expected last checked time to be set")
	}

	targets, err := repo.ListTargets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Errorf("Expected 1 target, got %d", len(targets))
	}
}
