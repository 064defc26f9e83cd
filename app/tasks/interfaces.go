package tasks

import (
	"context"

	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/translation"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background task processing.
// Example usage:
//
//	scheduler := NewScheduler(config, configCache, targetRepo, activityRepo, detector, processor, collector, clock)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.ScheduleTranslation(activityID)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	ScheduleConfigSync(targetConfig *feed.Config) error
	ScheduleTranslation(activityID string) error
}

type UpdateDetector interface {
	DetectUpdates(ctx context.Context, targetID string) ([]string, error)
}

type TranslationProcessor interface {
	ProcessTranslation(ctx context.Context, activityID string) (*translation.ProcessResult, error)
	QueueTranslation(ctx context.Context, activityID string) (bool, error)
}
