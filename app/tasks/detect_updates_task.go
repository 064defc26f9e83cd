package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/detector"
	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/metrics"
)

type DetectUpdatesTask struct {
	Task
	TargetConfig *feed.Config
	targetRepo   database.TargetRepository
	detector     UpdateDetector
	processor    TranslationProcessor // nil when no translator is configured
	collector    *metrics.Collector
	clock        clock.Clock
}

func NewDetectUpdatesTask(targetConfig *feed.Config, targetRepo database.TargetRepository, detector UpdateDetector,
	processor TranslationProcessor, collector *metrics.Collector, clk clock.Clock) *DetectUpdatesTask {
	return &DetectUpdatesTask{
		Task:         NewTask(TaskTypeDetectUpdates, targetConfig.Name),
		TargetConfig: targetConfig,
		targetRepo:   targetRepo,
		detector:     detector,
		processor:    processor,
		collector:    collector,
		clock:        clk,
	}
}

func (t *DetectUpdatesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.TargetConfig.Settings.Enabled {
		slog.Debug("Target disabled, skipping", "target", t.TargetConfig.Name)
		return nil
	}

	target, err := t.targetRepo.GetTargetByName(ctx, t.TargetConfig.Name)
	if err != nil {
		return fmt.Errorf("failed to get target: %w", err)
	}
	if target == nil {
		return fmt.Errorf("target %s is not synced yet", t.TargetConfig.Name)
	}

	detectCtx := ctx
	if t.TargetConfig.Settings.Timeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, time.Duration(t.TargetConfig.Settings.Timeout)*time.Second)
		defer cancel()
	}

	newIDs, err := t.detector.DetectUpdates(detectCtx, target.ID)
	if errors.Is(err, detector.ErrUnsupportedTargetType) {
		// Retrying cannot help until the configuration changes
		slog.Warn("Unsupported target source, skipping", "target", t.TargetConfig.Name, "source", target.SourceType)
		newIDs, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("failed to detect updates: %w", err)
	}

	nextCheck := t.clock.Now().Add(time.Duration(t.TargetConfig.Settings.RefreshInterval) * time.Second)
	if err := t.targetRepo.UpdateNextCheck(ctx, target.ID, nextCheck); err != nil {
		return fmt.Errorf("failed to update next check time: %w", err)
	}

	if t.collector != nil {
		t.collector.AddNewActivities(t.TargetConfig.Name, len(newIDs))
	}

	queued := 0
	if t.TargetConfig.Settings.AutoTranslate && t.processor != nil {
		for _, id := range newIDs {
			ok, err := t.processor.QueueTranslation(ctx, id)
			if err != nil {
				slog.Warn("Failed to queue translation", "target", t.TargetConfig.Name, "activity", id, "error", err)
				continue
			}
			if ok {
				queued++
			}
		}
	}

	slog.Info("Task completed",
		"type", "DetectUpdates",
		"target", t.TargetConfig.Name,
		"duration", t.GetDuration(),
		"new", len(newIDs),
		"translations_queued", queued,
		"next_check_at", nextCheck)

	return nil
}
