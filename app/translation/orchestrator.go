package translation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/lysyi3m/gh-digest/app/database"
)

const finalizeTimeout = 10 * time.Second

// Orchestrator drives the translation state of activities. Every transition is a
// conditional update on the current status; no locks are taken.
type Orchestrator struct {
	activityRepo database.ActivityRepository
	translator   Translator
	clock        clock.Clock
}

func NewOrchestrator(activityRepo database.ActivityRepository, translator Translator, clk clock.Clock) *Orchestrator {
	return &Orchestrator{
		activityRepo: activityRepo,
		translator:   translator,
		clock:        clk,
	}
}

// RequestTranslation moves an activity the user can see into pending. With force, a
// completed or processing translation is restarted as well.
func (o *Orchestrator) RequestTranslation(ctx context.Context, activityID, userID string, force bool) (RequestOutcome, *database.Activity, error) {
	activity, err := o.activityRepo.FindByIDIfWatchedBy(ctx, activityID, userID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find activity: %w", err)
	}
	if activity == nil {
		return RequestNotFound, nil, nil
	}

	if !force {
		switch activity.TranslationStatus {
		case database.TranslationStatusCompleted:
			return RequestAlreadyCompleted, activity, nil
		case database.TranslationStatusProcessing:
			return RequestConflict, activity, nil
		}
	}

	allowed := []database.TranslationStatus{
		database.TranslationStatusNotRequested,
		database.TranslationStatusPending,
		database.TranslationStatusFailed,
	}
	if force {
		allowed = append(allowed, database.TranslationStatusCompleted, database.TranslationStatusProcessing)
	}

	_, err = o.activityRepo.ConditionalUpdateTranslationState(ctx, activityID, database.TranslationPatch{
		Status:      database.TranslationStatusPending,
		RequestedAt: database.Value(o.clock.Now()),
		StartedAt:   database.Null[time.Time](),
		CompletedAt: database.Null[time.Time](),
		Error:       database.Null[string](),
	}, allowed)
	if err != nil {
		return "", nil, fmt.Errorf("failed to request translation: %w", err)
	}

	// The outcome follows the current state; a concurrent request may have won the update.
	activity, err = o.activityRepo.FindByID(ctx, activityID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to reload activity: %w", err)
	}
	if activity == nil {
		return RequestNotFound, nil, nil
	}

	switch activity.TranslationStatus {
	case database.TranslationStatusPending, database.TranslationStatusProcessing:
		return RequestAccepted, activity, nil
	default:
		return RequestConflict, activity, nil
	}
}

func (o *Orchestrator) GetTranslationStatus(ctx context.Context, activityID, userID string) (*Status, error) {
	activity, err := o.activityRepo.FindByIDIfWatchedBy(ctx, activityID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find activity: %w", err)
	}
	if activity == nil {
		return nil, ErrNotFound
	}

	return &Status{
		ActivityID:      activity.ID,
		Status:          activity.TranslationStatus,
		RequestedAt:     activity.TranslationRequestedAt,
		StartedAt:       activity.TranslationStartedAt,
		CompletedAt:     activity.TranslationCompletedAt,
		Error:           activity.TranslationError,
		TranslatedTitle: activity.TranslatedTitle,
		TranslatedBody:  activity.TranslatedBody,
		Summary:         activity.Summary,
	}, nil
}

// QueueTranslation requests a translation on behalf of the system. Activities that were
// already requested or translated are left alone.
func (o *Orchestrator) QueueTranslation(ctx context.Context, activityID string) (bool, error) {
	queued, err := o.activityRepo.ConditionalUpdateTranslationState(ctx, activityID, database.TranslationPatch{
		Status:      database.TranslationStatusPending,
		RequestedAt: database.Value(o.clock.Now()),
		StartedAt:   database.Null[time.Time](),
		CompletedAt: database.Null[time.Time](),
		Error:       database.Null[string](),
	}, []database.TranslationStatus{
		database.TranslationStatusNotRequested,
		database.TranslationStatusFailed,
	})
	if err != nil {
		return false, fmt.Errorf("failed to queue translation: %w", err)
	}
	return queued, nil
}

// ProcessTranslation claims a pending activity, translates it and records the result.
// Translator failures end in the failed state and are reported through the result, not
// as an error.
func (o *Orchestrator) ProcessTranslation(ctx context.Context, activityID string) (*ProcessResult, error) {
	activity, err := o.activityRepo.FindByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to find activity: %w", err)
	}
	if activity == nil {
		return skipped(activityID, ReasonNotFound), nil
	}

	if activity.TranslationStatus != database.TranslationStatusPending {
		return skipped(activityID, ReasonNotPending), nil
	}

	claimed, err := o.activityRepo.ConditionalUpdateTranslationState(ctx, activityID, database.TranslationPatch{
		Status:    database.TranslationStatusProcessing,
		StartedAt: database.Value(o.clock.Now()),
		Error:     database.Null[string](),
	}, []database.TranslationStatus{database.TranslationStatusPending})
	if err != nil {
		return nil, fmt.Errorf("failed to claim translation: %w", err)
	}
	if !claimed {
		return skipped(activityID, ReasonAlreadyProcessing), nil
	}

	result, err := o.translator.Translate(ctx, activity.Kind, activity.Title, activity.Body)

	// The outcome is recorded even when ctx was cancelled mid-translation.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err != nil {
		message := err.Error()
		recorded, recordErr := o.activityRepo.ConditionalUpdateTranslationState(finalizeCtx, activityID, database.TranslationPatch{
			Status: database.TranslationStatusFailed,
			Error:  database.Value(message),
		}, []database.TranslationStatus{database.TranslationStatusProcessing})
		if recordErr != nil {
			slog.Error("Failed to record translation failure", "activity", activityID, "error", recordErr)
		} else if !recorded {
			slog.Warn("Translation state changed before failure was recorded", "activity", activityID)
		}

		return &ProcessResult{
			Outcome:    ProcessFailed,
			Reason:     ReasonTranslationError,
			ActivityID: activityID,
			Message:    message,
		}, nil
	}

	completed, err := o.activityRepo.ConditionalUpdateTranslationState(finalizeCtx, activityID, database.TranslationPatch{
		Status:          database.TranslationStatusCompleted,
		CompletedAt:     database.Value(o.clock.Now()),
		TranslatedTitle: database.Value(result.Title),
		TranslatedBody:  database.Value(result.Body),
		Summary:         database.Value(result.Summary),
		Error:           database.Null[string](),
	}, []database.TranslationStatus{database.TranslationStatusProcessing})
	if err != nil {
		return nil, fmt.Errorf("failed to complete translation: %w", err)
	}
	if !completed {
		return &ProcessResult{
			Outcome:    ProcessFailed,
			Reason:     ReasonStateConflict,
			ActivityID: activityID,
		}, nil
	}

	activity, err = o.activityRepo.FindByID(finalizeCtx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload activity: %w", err)
	}

	return &ProcessResult{
		Outcome:    ProcessCompleted,
		ActivityID: activityID,
		Activity:   activity,
	}, nil
}

func skipped(activityID, reason string) *ProcessResult {
	return &ProcessResult{
		Outcome:    ProcessSkipped,
		Reason:     reason,
		ActivityID: activityID,
	}
}
