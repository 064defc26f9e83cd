package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ TargetRepository = (*SQLiteTargetRepository)(nil)

// SQLiteTargetRepository handles database operations for monitored targets
type SQLiteTargetRepository struct {
	db *DB
}

func NewTargetRepository(db *DB) *SQLiteTargetRepository {
	return &SQLiteTargetRepository{db: db}
}

const targetColumns = `id, name, full_name, source_type, last_checked_at, next_check_at, created_at, updated_at`

// UpsertTarget inserts or updates a target keyed by its configuration name
func (r *SQLiteTargetRepository) UpsertTarget(ctx context.Context, name, fullName, sourceType string) (*Target, error) {
	now := toMillis(time.Now())

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO targets (id, name, full_name, source_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			full_name = excluded.full_name,
			source_type = excluded.source_type,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), name, fullName, sourceType, now, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert target: %w", err)
	}

	return r.GetTarget(ctx, id)
}

// SetWatchers replaces the set of users watching a target
func (r *SQLiteTargetRepository) SetWatchers(ctx context.Context, targetID string, userIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watches WHERE target_id = ?`, targetID); err != nil {
		return fmt.Errorf("failed to clear watchers: %w", err)
	}

	now := toMillis(time.Now())
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO watches (user_id, target_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id, target_id) DO NOTHING
		`, userID, targetID, now)
		if err != nil {
			return fmt.Errorf("failed to add watcher %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit watchers: %w", err)
	}

	return nil
}

// UpdateNextCheck records a finished detection run and schedules the next one
func (r *SQLiteTargetRepository) UpdateNextCheck(ctx context.Context, targetID string, nextCheck time.Time) error {
	now := toMillis(time.Now())
	_, err := r.db.ExecContext(ctx, `
		UPDATE targets
		SET next_check_at = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?
	`, toMillis(nextCheck), now, now, targetID)
	if err != nil {
		return fmt.Errorf("failed to update next check time: %w", err)
	}

	return nil
}

func (r *SQLiteTargetRepository) GetTarget(ctx context.Context, id string) (*Target, error) {
	target, err := scanTarget(r.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	return target, nil
}

func (r *SQLiteTargetRepository) GetTargetByName(ctx context.Context, name string) (*Target, error) {
	target, err := scanTarget(r.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target by name: %w", err)
	}

	return target, nil
}

func (r *SQLiteTargetRepository) ListTargets(ctx context.Context) ([]Target, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		targets = append(targets, *target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target rows: %w", err)
	}

	return targets, nil
}

func (r *SQLiteTargetRepository) GetTargetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM targets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get target count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*Target, error) {
	var (
		target        Target
		lastCheckedAt sql.NullInt64
		nextCheckAt   sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)

	err := row.Scan(&target.ID, &target.Name, &target.FullName, &target.SourceType,
		&lastCheckedAt, &nextCheckAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	target.LastCheckedAt = timePtr(lastCheckedAt)
	target.NextCheckAt = timePtr(nextCheckAt)
	target.CreatedAt = fromMillis(createdAt)
	target.UpdatedAt = fromMillis(updatedAt)

	return &target, nil
}
