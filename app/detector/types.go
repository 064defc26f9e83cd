package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/github"
)

var (
	ErrTargetNotFound        = errors.New("target not found")
	ErrUnsupportedTargetType = errors.New("unsupported target type")
)

// DetectionError reports a failed fetch for one target. Nothing from the run is stored.
type DetectionError struct {
	TargetID string
	Err      error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("failed to detect updates for target %s: %v", e.TargetID, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// Gateway is the activity source. *github.Client satisfies it.
type Gateway interface {
	ListReleases(ctx context.Context, fullName string, pageSize int) ([]github.Release, error)
	ListIssues(ctx context.Context, fullName string, since time.Time, pageSize int) ([]github.Issue, error)
	ListPullRequests(ctx context.Context, fullName string, since time.Time, pageSize int) ([]github.PullRequest, error)
}

// TargetPolicy supplies per-target settings that live outside the database.
type TargetPolicy interface {
	PageSize(target *database.Target) int
	Filter(target *database.Target, candidates []database.ActivityCandidate) []database.ActivityCandidate
}
