package translation

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/gh-digest/app/database"
)

var (
	ErrNotFound = errors.New("activity not found")

	ErrRateLimited       = errors.New("translator rate limited")
	ErrUnauthorized      = errors.New("translator rejected credentials")
	ErrMalformedResponse = errors.New("malformed translator response")
)

type RequestOutcome string

const (
	RequestAccepted         RequestOutcome = "accepted"
	RequestAlreadyCompleted RequestOutcome = "already_completed"
	RequestConflict         RequestOutcome = "conflict"
	RequestNotFound         RequestOutcome = "not_found"
)

type ProcessOutcome string

const (
	ProcessCompleted ProcessOutcome = "completed"
	ProcessSkipped   ProcessOutcome = "skipped"
	ProcessFailed    ProcessOutcome = "failed"
)

// Reasons attached to skipped and failed outcomes
const (
	ReasonNotFound          = "not_found"
	ReasonNotPending        = "not_pending"
	ReasonAlreadyProcessing = "already_processing"
	ReasonStateConflict     = "state_conflict"
	ReasonTranslationError  = "translation_error"
)

type ProcessResult struct {
	Outcome    ProcessOutcome
	Reason     string
	ActivityID string
	Activity   *database.Activity // set when completed
	Message    string             // translator error message when failed
}

// Status is a read-only snapshot of an activity's translation state.
type Status struct {
	ActivityID      string
	Status          database.TranslationStatus
	RequestedAt     *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Error           *string
	TranslatedTitle *string
	TranslatedBody  *string
	Summary         *string
}

type Result struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Summary string `json:"summary"`
}

// Translator turns an activity's title and body into the configured language.
type Translator interface {
	Translate(ctx context.Context, kind database.ActivityKind, title, body string) (*Result, error)
}
