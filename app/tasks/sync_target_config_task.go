package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/feed"
)

type SyncTargetConfigTask struct {
	Task
	TargetConfig *feed.Config
	targetRepo   database.TargetRepository
}

func NewSyncTargetConfigTask(targetConfig *feed.Config, targetRepo database.TargetRepository) *SyncTargetConfigTask {
	return &SyncTargetConfigTask{
		Task:         NewTask(TaskTypeSyncTargetConfig, targetConfig.Name),
		TargetConfig: targetConfig,
		targetRepo:   targetRepo,
	}
}

func (t *SyncTargetConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	target, err := t.targetRepo.UpsertTarget(ctx, t.TargetConfig.Name, t.TargetConfig.Repo, t.TargetConfig.Source)
	if err != nil {
		return fmt.Errorf("failed to sync target config to database: %w", err)
	}

	if err := t.targetRepo.SetWatchers(ctx, target.ID, t.TargetConfig.Watchers); err != nil {
		return fmt.Errorf("failed to sync watchers: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncTargetConfig",
		"target", t.TargetConfig.Name,
		"repo", t.TargetConfig.Repo,
		"watchers", len(t.TargetConfig.Watchers),
		"duration", t.GetDuration())

	return nil
}
