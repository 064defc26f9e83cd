package database

import (
	"context"
	"time"
)

type TargetRepository interface {
	GetTarget(ctx context.Context, id string) (*Target, error)
	GetTargetByName(ctx context.Context, name string) (*Target, error)
	GetTargetCount(ctx context.Context) (int, error)
	ListTargets(ctx context.Context) ([]Target, error)

	UpsertTarget(ctx context.Context, name, fullName, sourceType string) (*Target, error)
	SetWatchers(ctx context.Context, targetID string, userIDs []string) error
	UpdateNextCheck(ctx context.Context, targetID string, nextCheck time.Time) error
}

type ActivityRepository interface {
	Upsert(ctx context.Context, candidate ActivityCandidate) (*Activity, bool, error)
	FindByID(ctx context.Context, id string) (*Activity, error)
	FindByIDIfWatchedBy(ctx context.Context, id, userID string) (*Activity, error)
	ConditionalUpdateTranslationState(ctx context.Context, id string, patch TranslationPatch, allowed []TranslationStatus) (bool, error)
	WatermarkFor(ctx context.Context, targetID string) (*time.Time, error)

	ListForUser(ctx context.Context, userID string, query ActivityQuery) ([]Activity, int, error)
	ListByTarget(ctx context.Context, targetID string, limit int) ([]Activity, error)
	ListPendingTranslations(ctx context.Context, limit int) ([]string, error)
	GetActivityStats(ctx context.Context, targetID string) (*ActivityStats, error)

	// InTx runs fn against a repository bound to a single transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(repo ActivityRepository) error) error
}
