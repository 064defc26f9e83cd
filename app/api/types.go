package api

import (
	"context"
	"time"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/tasks"
	"github.com/lysyi3m/gh-digest/app/translation"
)

// outcomeInProgress reports a translation already being processed by a worker.
const outcomeInProgress = "in_progress"

type GeneratorInterface interface {
	Run(channel feed.Channel, activities []database.Activity) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type TranslationService interface {
	RequestTranslation(ctx context.Context, activityID, userID string, force bool) (translation.RequestOutcome, *database.Activity, error)
	GetTranslationStatus(ctx context.Context, activityID, userID string) (*translation.Status, error)
}

var _ TranslationService = (*translation.Orchestrator)(nil)

type Handler struct {
	configCache  *feed.ConfigCache
	targetRepo   database.TargetRepository
	activityRepo database.ActivityRepository
	generator    GeneratorInterface
	detector     tasks.UpdateDetector
	translations TranslationService // nil when no translator is configured
	scheduler    tasks.TaskSchedulerInterface
	feedLanguage string
	version      string
}

type HandlerConfig struct {
	BaseURL      string
	Version      string
	FeedLanguage string
}

type translationRequest struct {
	Force bool `json:"force"`
}

type activityResponse struct {
	ID                string     `json:"id"`
	TargetID          string     `json:"target_id"`
	ExternalEventID   string     `json:"external_event_id"`
	Kind              string     `json:"kind"`
	Title             string     `json:"title"`
	URL               string     `json:"url"`
	Author            string     `json:"author"`
	Version           *string    `json:"version,omitempty"`
	TranslatedTitle   *string    `json:"translated_title,omitempty"`
	Summary           *string    `json:"summary,omitempty"`
	TranslationStatus string     `json:"translation_status"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"translation_completed_at,omitempty"`
}

type translationStatusResponse struct {
	ActivityID      string     `json:"activity_id"`
	Status          string     `json:"status"`
	RequestedAt     *time.Time `json:"requested_at"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Error           *string    `json:"error"`
	TranslatedTitle *string    `json:"translated_title,omitempty"`
	TranslatedBody  *string    `json:"translated_body,omitempty"`
	Summary         *string    `json:"summary,omitempty"`
}

func newActivityResponse(activity database.Activity) activityResponse {
	return activityResponse{
		ID:                activity.ID,
		TargetID:          activity.TargetID,
		ExternalEventID:   activity.ExternalEventID,
		Kind:              string(activity.Kind),
		Title:             activity.Title,
		URL:               activity.URL,
		Author:            activity.Author,
		Version:           activity.Version,
		TranslatedTitle:   activity.TranslatedTitle,
		Summary:           activity.Summary,
		TranslationStatus: string(activity.TranslationStatus),
		CreatedAt:         activity.CreatedAt,
		CompletedAt:       activity.TranslationCompletedAt,
	}
}

func newTranslationStatusResponse(status *translation.Status) translationStatusResponse {
	return translationStatusResponse{
		ActivityID:      status.ActivityID,
		Status:          string(status.Status),
		RequestedAt:     status.RequestedAt,
		StartedAt:       status.StartedAt,
		CompletedAt:     status.CompletedAt,
		Error:           status.Error,
		TranslatedTitle: status.TranslatedTitle,
		TranslatedBody:  status.TranslatedBody,
		Summary:         status.Summary,
	}
}
