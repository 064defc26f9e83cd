package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ ActivityRepository = (*SQLiteActivityRepository)(nil)

// SQLiteActivityRepository handles database operations for activity records.
// A repository returned by InTx shares one transaction; the root repository uses the pool.
type SQLiteActivityRepository struct {
	db *DB
	q  querier
	tx bool
}

func NewActivityRepository(db *DB) *SQLiteActivityRepository {
	return &SQLiteActivityRepository{db: db, q: db.DB}
}

const activityColumns = `a.id, a.target_id, a.external_event_id, a.kind, a.title, a.body, a.url, a.author,
	a.version, a.raw_payload, a.translated_title, a.translated_body, a.summary, a.processing_status,
	a.translation_status, a.translation_requested_at, a.translation_started_at,
	a.translation_completed_at, a.translation_error, a.created_at, a.updated_at`

func (r *SQLiteActivityRepository) InTx(ctx context.Context, fn func(repo ActivityRepository) error) error {
	if r.tx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&SQLiteActivityRepository{db: r.db, q: tx, tx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}

// Upsert stores a candidate keyed by (target, kind, external event id). An existing
// record only has its source fields refreshed; translation state is left untouched.
func (r *SQLiteActivityRepository) Upsert(ctx context.Context, c ActivityCandidate) (*Activity, bool, error) {
	now := toMillis(time.Now())
	payload := c.RawPayload
	if payload == "" {
		payload = "{}"
	}

	var id string
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO activities (
			id, target_id, external_event_id, kind, title, body, url, author,
			version, raw_payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target_id, kind, external_event_id) DO NOTHING
		RETURNING id
	`, uuid.NewString(), c.TargetID, c.ExternalEventID, string(c.Kind), c.Title, c.Body, c.URL, c.Author,
		nullString(c.Version), payload, toMillis(c.OccurredAt), now).Scan(&id)

	if err == nil {
		activity, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return activity, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to insert activity: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		UPDATE activities
		SET title = ?, body = ?, url = ?, author = ?, version = ?, raw_payload = ?, updated_at = ?
		WHERE target_id = ? AND kind = ? AND external_event_id = ?
		  AND (title IS NOT ? OR body IS NOT ? OR url IS NOT ? OR author IS NOT ?
		       OR version IS NOT ? OR raw_payload IS NOT ?)
	`, c.Title, c.Body, c.URL, c.Author, nullString(c.Version), payload, now,
		c.TargetID, string(c.Kind), c.ExternalEventID,
		c.Title, c.Body, c.URL, c.Author, nullString(c.Version), payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update activity: %w", err)
	}

	activity, err := scanActivity(r.q.QueryRowContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		WHERE a.target_id = ? AND a.kind = ? AND a.external_event_id = ?
	`, c.TargetID, string(c.Kind), c.ExternalEventID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload activity: %w", err)
	}

	return activity, false, nil
}

func (r *SQLiteActivityRepository) FindByID(ctx context.Context, id string) (*Activity, error) {
	activity, err := scanActivity(r.q.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities a WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return activity, nil
}

// FindByIDIfWatchedBy returns nil both when the activity is absent and when userID does
// not watch its target.
func (r *SQLiteActivityRepository) FindByIDIfWatchedBy(ctx context.Context, id, userID string) (*Activity, error) {
	activity, err := scanActivity(r.q.QueryRowContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		JOIN watches w ON w.target_id = a.target_id
		WHERE a.id = ? AND w.user_id = ?
	`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watched activity: %w", err)
	}

	return activity, nil
}

// ConditionalUpdateTranslationState applies patch only while the current translation
// status is one of allowed. It reports whether the row changed.
func (r *SQLiteActivityRepository) ConditionalUpdateTranslationState(ctx context.Context, id string, patch TranslationPatch, allowed []TranslationStatus) (bool, error) {
	if len(allowed) == 0 {
		return false, nil
	}

	sets := []string{"translation_status = ?", "updated_at = ?"}
	args := []any{string(patch.Status), toMillis(time.Now())}

	addTime := func(column string, field Optional[time.Time]) {
		if field.Set {
			sets = append(sets, column+" = ?")
			args = append(args, nullMillis(field.Value))
		}
	}
	addString := func(column string, field Optional[string]) {
		if field.Set {
			sets = append(sets, column+" = ?")
			args = append(args, nullString(field.Value))
		}
	}

	addTime("translation_requested_at", patch.RequestedAt)
	addTime("translation_started_at", patch.StartedAt)
	addTime("translation_completed_at", patch.CompletedAt)
	addString("translation_error", patch.Error)
	addString("translated_title", patch.TranslatedTitle)
	addString("translated_body", patch.TranslatedBody)
	addString("summary", patch.Summary)

	placeholders := make([]string, len(allowed))
	args = append(args, id)
	for i, status := range allowed {
		placeholders[i] = "?"
		args = append(args, string(status))
	}

	query := fmt.Sprintf(`UPDATE activities SET %s WHERE id = ? AND translation_status IN (%s)`,
		strings.Join(sets, ", "), strings.Join(placeholders, ", "))

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update translation state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// WatermarkFor returns the newest activity occurrence time for a target, or nil when the
// target has no activity yet.
func (r *SQLiteActivityRepository) WatermarkFor(ctx context.Context, targetID string) (*time.Time, error) {
	var latest sql.NullInt64
	err := r.q.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM activities WHERE target_id = ?`, targetID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	return timePtr(latest), nil
}

// ListForUser returns one page of activities from targets the user watches, newest first,
// together with the total number of matching activities.
func (r *SQLiteActivityRepository) ListForUser(ctx context.Context, userID string, query ActivityQuery) ([]Activity, int, error) {
	where := []string{"w.user_id = ?"}
	args := []any{userID}

	if query.TargetID != "" {
		where = append(where, "a.target_id = ?")
		args = append(args, query.TargetID)
	}
	if query.Kind != "" {
		where = append(where, "a.kind = ?")
		args = append(args, string(query.Kind))
	}
	if query.TranslationStatus != "" {
		where = append(where, "a.translation_status = ?")
		args = append(args, string(query.TranslationStatus))
	}

	from := `FROM activities a JOIN watches w ON w.target_id = a.target_id WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	perPage := query.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+activityColumns+` `+from+` ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`,
		append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}

	activities, err := collectActivities(rows)
	if err != nil {
		return nil, 0, err
	}

	return activities, total, nil
}

func (r *SQLiteActivityRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]Activity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		WHERE a.target_id = ?
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?
	`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list target activities: %w", err)
	}

	return collectActivities(rows)
}

// ListPendingTranslations returns ids of activities waiting for a translation worker,
// oldest request first.
func (r *SQLiteActivityRepository) ListPendingTranslations(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id FROM activities
		WHERE translation_status = ?
		ORDER BY translation_requested_at, id
		LIMIT ?
	`, string(TranslationStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending translations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity ids: %w", err)
	}

	return ids, nil
}

func (r *SQLiteActivityRepository) GetActivityStats(ctx context.Context, targetID string) (*ActivityStats, error) {
	var stats ActivityStats
	err := r.q.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'release' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'issue' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'pull_request' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN translation_status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN translation_status IN ('pending', 'processing') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN translation_status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM activities
		WHERE target_id = ?
	`, targetID).Scan(&stats.Total, &stats.Releases, &stats.Issues, &stats.PullRequests,
		&stats.TranslationsDone, &stats.TranslationsQueued, &stats.TranslationsFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity stats: %w", err)
	}

	return &stats, nil
}

func collectActivities(rows *sql.Rows) ([]Activity, error) {
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activities = append(activities, *activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return activities, nil
}

func scanActivity(row rowScanner) (*Activity, error) {
	var (
		activity          Activity
		kind              string
		processingStatus  string
		translationStatus string
		version           sql.NullString
		translatedTitle   sql.NullString
		translatedBody    sql.NullString
		summary           sql.NullString
		translationError  sql.NullString
		requestedAt       sql.NullInt64
		startedAt         sql.NullInt64
		completedAt       sql.NullInt64
		createdAt         int64
		updatedAt         int64
	)

	err := row.Scan(
		&activity.ID, &activity.TargetID, &activity.ExternalEventID, &kind,
		&activity.Title, &activity.Body, &activity.URL, &activity.Author,
		&version, &activity.RawPayload, &translatedTitle, &translatedBody, &summary,
		&processingStatus, &translationStatus, &requestedAt, &startedAt, &completedAt,
		&translationError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	activity.Kind = ActivityKind(kind)
	activity.ProcessingStatus = ProcessingStatus(processingStatus)
	activity.TranslationStatus = TranslationStatus(translationStatus)
	activity.Version = stringPtr(version)
	activity.TranslatedTitle = stringPtr(translatedTitle)
	activity.TranslatedBody = stringPtr(translatedBody)
	activity.Summary = stringPtr(summary)
	activity.TranslationError = stringPtr(translationError)
	activity.TranslationRequestedAt = timePtr(requestedAt)
	activity.TranslationStartedAt = timePtr(startedAt)
	activity.TranslationCompletedAt = timePtr(completedAt)
	activity.CreatedAt = fromMillis(createdAt)
	activity.UpdatedAt = fromMillis(updatedAt)

	return &activity, nil
}
