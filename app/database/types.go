package database

import (
	"time"
)

type ActivityKind string

const (
	ActivityKindRelease     ActivityKind = "release"
	ActivityKindIssue       ActivityKind = "issue"
	ActivityKindPullRequest ActivityKind = "pull_request"
)

// ProcessingStatus is the feed-level status of an activity, independent of translation.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

type TranslationStatus string

const (
	TranslationStatusNotRequested TranslationStatus = "not_requested"
	TranslationStatusPending      TranslationStatus = "pending"
	TranslationStatusProcessing   TranslationStatus = "processing"
	TranslationStatusCompleted    TranslationStatus = "completed"
	TranslationStatusFailed       TranslationStatus = "failed"
)

const SourceTypeGitHub = "github"

type Target struct {
	ID            string // Database UUID
	Name          string // Configuration target identifier derived from filename
	FullName      string // owner/repo
	SourceType    string
	LastCheckedAt *time.Time
	NextCheckAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Activity struct {
	ID               string
	TargetID         string
	ExternalEventID  string
	Kind             ActivityKind
	Title            string
	Body             string
	URL              string
	Author           string
	Version          *string // releases only
	RawPayload       string
	TranslatedTitle  *string
	TranslatedBody   *string
	Summary          *string
	ProcessingStatus ProcessingStatus

	TranslationStatus      TranslationStatus
	TranslationRequestedAt *time.Time
	TranslationStartedAt   *time.Time
	TranslationCompletedAt *time.Time
	TranslationError       *string

	CreatedAt time.Time // occurrence time at the source, the watermark axis
	UpdatedAt time.Time
}

// ActivityCandidate is an activity as observed at the source, before it is stored.
type ActivityCandidate struct {
	TargetID        string
	ExternalEventID string
	Kind            ActivityKind
	Title           string
	Body            string
	URL             string
	Author          string
	Version         *string
	RawPayload      string
	OccurredAt      time.Time
}

// Optional is a tri-state patch field: unset leaves the column alone, Set with a nil
// Value writes NULL.
type Optional[T any] struct {
	Value *T
	Set   bool
}

func Value[T any](v T) Optional[T] {
	return Optional[T]{Value: &v, Set: true}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

type TranslationPatch struct {
	Status          TranslationStatus
	RequestedAt     Optional[time.Time]
	StartedAt       Optional[time.Time]
	CompletedAt     Optional[time.Time]
	Error           Optional[string]
	TranslatedTitle Optional[string]
	TranslatedBody  Optional[string]
	Summary         Optional[string]
}

type ActivityQuery struct {
	TargetID          string
	Kind              ActivityKind
	TranslationStatus TranslationStatus
	Page              int // 1-based
	PerPage           int
}

type ActivityStats struct {
	Total              int
	Releases           int
	Issues             int
	PullRequests       int
	TranslationsDone   int
	TranslationsQueued int
	TranslationsFailed int
}
