package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/gh-digest/app/metrics"
	"github.com/lysyi3m/gh-digest/app/translation"
)

type ProcessTranslationTask struct {
	Task
	ActivityID string
	processor  TranslationProcessor
	collector  *metrics.Collector
}

func NewProcessTranslationTask(activityID string, processor TranslationProcessor, collector *metrics.Collector) *ProcessTranslationTask {
	return &ProcessTranslationTask{
		Task:       NewTask(TaskTypeProcessTranslation, activityID),
		ActivityID: activityID,
		processor:  processor,
		collector:  collector,
	}
}

func (t *ProcessTranslationTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.processor.ProcessTranslation(ctx, t.ActivityID)
	if err != nil {
		return fmt.Errorf("failed to process translation: %w", err)
	}

	if t.collector != nil {
		t.collector.ObserveTranslation(string(result.Outcome), result.Reason)
	}

	switch result.Outcome {
	case translation.ProcessSkipped:
		slog.Debug("Translation skipped", "activity", t.ActivityID, "reason", result.Reason)
	case translation.ProcessFailed:
		slog.Warn("Translation failed",
			"activity", t.ActivityID,
			"reason", result.Reason,
			"message", result.Message,
			"duration", t.GetDuration())
	default:
		slog.Info("Task completed",
			"type", "ProcessTranslation",
			"activity", t.ActivityID,
			"duration", t.GetDuration())
	}

	return nil
}
