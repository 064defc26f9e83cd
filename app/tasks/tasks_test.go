package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/detector"
	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/metrics"
	"github.com/lysyi3m/gh-digest/app/translation"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig(name string, enabled bool) *feed.Config {
	return &feed.Config{
		Name:     name,
		Repo:     "golang/" + name,
		Source:   database.SourceTypeGitHub,
		Watchers: []string{"alice"},
		Settings: feed.ConfigSettings{
			Enabled:         enabled,
			RefreshInterval: 600,
			PageSize:        30,
			Timeout:         10,
		},
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeDetectUpdates, "go")

	if task.ID == "" {
		t.Error("Expected task ID to be generated")
	}
	if task.GetSubject() != "go" {
		t.Errorf("Expected subject 'go', got '%s'", task.GetSubject())
	}
	if task.GetMaxRetries() != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got %d", DefaultMaxRetries, task.GetMaxRetries())
	}
	if task.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", task.GetDuration())
	}

	other := NewTask(TaskTypeDetectUpdates, "go")
	if other.ID == task.ID {
		t.Error("Expected distinct task IDs")
	}
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeSyncTargetConfig, "go")

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected task to be retryable after %d retries", i)
		}
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Error("Expected task not to be retryable after max retries")
	}
}

func TestSyncTargetConfigTask(t *testing.T) {
	repo := NewMockTargetRepository()
	targetConfig := testConfig("go", true)
	targetConfig.Watchers = []string{"alice", "bob"}

	task := NewSyncTargetConfigTask(targetConfig, repo)
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	target := repo.targets["go"]
	if target == nil {
		t.Fatal("Expected target to be upserted")
	}
	if target.FullName != "golang/go" {
		t.Errorf("Expected full name 'golang/go', got '%s'", target.FullName)
	}
	if target.SourceType != database.SourceTypeGitHub {
		t.Errorf("Expected source type github, got '%s'", target.SourceType)
	}
	if got := repo.watchers[target.ID]; len(got) != 2 || got[1] != "bob" {
		t.Errorf("Expected watchers [alice bob], got %v", got)
	}
}

func TestSyncTargetConfigTaskError(t *testing.T) {
	repo := NewMockTargetRepository()
	repo.err = errors.New("database is locked")

	task := NewSyncTargetConfigTask(testConfig("go", true), repo)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error when the repository fails")
	}
}

func TestDetectUpdatesTask(t *testing.T) {
	repo := NewMockTargetRepository(&database.Target{ID: "t1", Name: "go"})
	det := &MockDetector{newIDs: []string{"a1", "a2"}}
	processor := &MockProcessor{}
	clk := testclock.NewClock(testNow)

	targetConfig := testConfig("go", true)
	targetConfig.Settings.AutoTranslate = true

	task := NewDetectUpdatesTask(targetConfig, repo, det, processor, metrics.NewCollector(), clk)
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(det.calls) != 1 || det.calls[0] != "t1" {
		t.Errorf("Expected detection for target t1, got %v", det.calls)
	}

	expectedNext := testNow.Add(600 * time.Second)
	if got := repo.nextChecks["t1"]; !got.Equal(expectedNext) {
		t.Errorf("Expected next check %v, got %v", expectedNext, got)
	}

	if len(processor.queued) != 2 || processor.queued[0] != "a1" || processor.queued[1] != "a2" {
		t.Errorf("Expected new activities to be queued for translation, got %v", processor.queued)
	}
}

func TestDetectUpdatesTaskWithoutAutoTranslate(t *testing.T) {
	repo := NewMockTargetRepository(&database.Target{ID: "t1", Name: "go"})
	det := &MockDetector{newIDs: []string{"a1"}}
	processor := &MockProcessor{}

	task := NewDetectUpdatesTask(testConfig("go", true), repo, det, processor, nil, testclock.NewClock(testNow))
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(processor.queued) != 0 {
		t.Errorf("Expected nothing queued, got %v", processor.queued)
	}
}

func TestDetectUpdatesTaskDisabled(t *testing.T) {
	repo := NewMockTargetRepository(&database.Target{ID: "t1", Name: "go"})
	det := &MockDetector{}

	task := NewDetectUpdatesTask(testConfig("go", false), repo, det, nil, nil, testclock.NewClock(testNow))
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if det.callCount() != 0 {
		t.Errorf("Expected detector not to be called, got %d calls", det.callCount())
	}
}

func TestDetectUpdatesTaskTargetNotSynced(t *testing.T) {
	repo := NewMockTargetRepository()
	det := &MockDetector{}

	task := NewDetectUpdatesTask(testConfig("go", true), repo, det, nil, nil, testclock.NewClock(testNow))
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error for a target that is not synced yet")
	}
	if det.callCount() != 0 {
		t.Errorf("Expected detector not to be called, got %d calls", det.callCount())
	}
}

func TestDetectUpdatesTaskDetectionError(t *testing.T) {
	repo := NewMockTargetRepository(&database.Target{ID: "t1", Name: "go"})
	det := &MockDetector{err: &detector.DetectionError{TargetID: "t1", Err: errors.New("boom")}}

	task := NewDetectUpdatesTask(testConfig("go", true), repo, det, nil, nil, testclock.NewClock(testNow))
	err := task.Execute(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}

	var detectionErr *detector.DetectionError
	if !errors.As(err, &detectionErr) {
		t.Errorf("Expected DetectionError in chain, got %v", err)
	}
	if _, ok := repo.nextChecks["t1"]; ok {
		t.Error("Expected next check to stay unset after a failed detection")
	}
}

func TestDetectUpdatesTaskUnsupportedSource(t *testing.T) {
	repo := NewMockTargetRepository(&database.Target{ID: "t1", Name: "go", SourceType: "gitlab"})
	det := &MockDetector{err: fmt.Errorf("%w: gitlab", detector.ErrUnsupportedTargetType)}

	task := NewDetectUpdatesTask(testConfig("go", true), repo, det, nil, nil, testclock.NewClock(testNow))
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected unsupported source not to be retried, got %v", err)
	}
	if _, ok := repo.nextChecks["t1"]; !ok {
		t.Error("Expected next check to be pushed out")
	}
}

func TestProcessTranslationTask(t *testing.T) {
	processor := &MockProcessor{}

	task := NewProcessTranslationTask("a1", processor, metrics.NewCollector())
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(processor.processed) != 1 || processor.processed[0] != "a1" {
		t.Errorf("Expected activity a1 to be processed, got %v", processor.processed)
	}
}

func TestProcessTranslationTaskOutcomesAreNotErrors(t *testing.T) {
	results := []*translation.ProcessResult{
		{Outcome: translation.ProcessSkipped, Reason: translation.ReasonNotPending},
		{Outcome: translation.ProcessFailed, Reason: translation.ReasonTranslationError, Message: "rate limited"},
	}

	for _, result := range results {
		processor := &MockProcessor{result: result}
		task := NewProcessTranslationTask("a1", processor, nil)
		if err := task.Execute(context.Background()); err != nil {
			t.Errorf("Expected no error for outcome %s, got %v", result.Outcome, err)
		}
	}
}

func TestProcessTranslationTaskStoreError(t *testing.T) {
	processor := &MockProcessor{err: errors.New("disk I/O error")}

	task := NewProcessTranslationTask("a1", processor, nil)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected store error to be returned")
	}
}

func TestTaskCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewMockTargetRepository(&database.Target{ID: "t1", Name: "go"})
	det := &MockDetector{}

	tasks := []TaskInterface{
		NewSyncTargetConfigTask(testConfig("go", true), repo),
		NewDetectUpdatesTask(testConfig("go", true), repo, det, nil, nil, testclock.NewClock(testNow)),
		NewProcessTranslationTask("a1", &MockProcessor{}, nil),
	}

	for _, task := range tasks {
		if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled for %s, got %v", task.GetType(), err)
		}
	}
}
