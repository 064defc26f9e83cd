package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/metrics"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueCapacity     = 300
	taskTimeout       = 5 * time.Minute
	maxRetryDelay     = 30 * time.Second
	translationsBatch = 50
)

type SchedulerConfig struct {
	Interval    time.Duration
	WorkerCount int
}

type Scheduler struct {
	configCache  *feed.ConfigCache
	targetRepo   database.TargetRepository
	activityRepo database.ActivityRepository
	detector     UpdateDetector
	processor    TranslationProcessor // nil disables translation work
	collector    *metrics.Collector
	clock        clock.Clock
	interval     time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface

	// activity ids with a translation task queued or running
	inflight   map[string]bool
	inflightMu sync.Mutex
}

func NewScheduler(config SchedulerConfig, configCache *feed.ConfigCache, targetRepo database.TargetRepository,
	activityRepo database.ActivityRepository, detector UpdateDetector, processor TranslationProcessor,
	collector *metrics.Collector, clk clock.Clock) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &Scheduler{
		configCache:  configCache,
		targetRepo:   targetRepo,
		activityRepo: activityRepo,
		detector:     detector,
		processor:    processor,
		collector:    collector,
		clock:        clk,
		interval:     config.Interval,
		workerCount:  workerCount,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, queueCapacity),
		inflight:     make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueueStartupTasks()

		timer := s.clock.NewTimer(s.interval)
		defer timer.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-timer.Chan():
				s.enqueueTasks()
				timer.Reset(s.interval)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		if s.collector != nil {
			s.collector.SetQueueDepth(len(s.taskQueue))
		}
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) ScheduleConfigSync(targetConfig *feed.Config) error {
	return s.EnqueueTask(NewSyncTargetConfigTask(targetConfig, s.targetRepo))
}

// ScheduleTranslation queues translation work for an activity unless a task for it is
// already queued or running.
func (s *Scheduler) ScheduleTranslation(activityID string) error {
	if s.processor == nil {
		return fmt.Errorf("translation is not configured")
	}

	s.inflightMu.Lock()
	if s.inflight[activityID] {
		s.inflightMu.Unlock()
		return nil
	}
	s.inflight[activityID] = true
	s.inflightMu.Unlock()

	if err := s.EnqueueTask(NewProcessTranslationTask(activityID, s.processor, s.collector)); err != nil {
		s.release(activityID)
		return err
	}
	return nil
}

func (s *Scheduler) release(activityID string) {
	s.inflightMu.Lock()
	delete(s.inflight, activityID)
	s.inflightMu.Unlock()
}

func (s *Scheduler) enqueueStartupTasks() {
	targetConfigs := s.configCache.GetConfigs()
	if len(targetConfigs) == 0 {
		slog.Debug("No target configurations found")
		return
	}

	slog.Debug("Processing target configurations", "count", len(targetConfigs))

	for _, targetConfig := range targetConfigs {
		if err := s.ScheduleConfigSync(targetConfig); err != nil {
			slog.Warn("Failed to enqueue SyncTargetConfigTask", "target", targetConfig.Name, "error", err)
			continue
		}

		if !targetConfig.Settings.Enabled {
			slog.Debug("Target disabled, skipping DetectUpdatesTask", "target", targetConfig.Name)
			continue
		}

		detectTask := NewDetectUpdatesTask(targetConfig, s.targetRepo, s.detector, s.processor, s.collector, s.clock)
		if err := s.EnqueueTask(detectTask); err != nil {
			slog.Warn("Failed to enqueue DetectUpdatesTask", "target", targetConfig.Name, "error", err)
		}
	}

	s.enqueuePendingTranslations()
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueDueDetections()
	s.enqueuePendingTranslations()
}

func (s *Scheduler) enqueueDueDetections() {
	targetConfigs := s.configCache.GetEnabledConfigs()
	if len(targetConfigs) == 0 {
		slog.Debug("No enabled target configurations found")
		return
	}

	now := s.clock.Now()
	for _, targetConfig := range targetConfigs {
		target, err := s.targetRepo.GetTargetByName(s.ctx, targetConfig.Name)
		if err != nil {
			slog.Warn("Failed to get target from database, skipping", "target", targetConfig.Name, "error", err)
			continue
		}
		if target == nil {
			slog.Warn("Target not found in database, skipping", "target", targetConfig.Name)
			continue
		}

		if target.NextCheckAt != nil && target.NextCheckAt.After(now) {
			slog.Debug("Target not due for detection yet", "target", targetConfig.Name, "next_check_at", target.NextCheckAt)
			continue
		}

		detectTask := NewDetectUpdatesTask(targetConfig, s.targetRepo, s.detector, s.processor, s.collector, s.clock)
		if err := s.EnqueueTask(detectTask); err != nil {
			slog.Warn("Failed to enqueue DetectUpdatesTask", "target", targetConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueuePendingTranslations() {
	if s.processor == nil {
		return
	}

	ids, err := s.activityRepo.ListPendingTranslations(s.ctx, translationsBatch)
	if err != nil {
		slog.Warn("Failed to list pending translations", "error", err)
		return
	}

	for _, id := range ids {
		if err := s.ScheduleTranslation(id); err != nil {
			slog.Warn("Failed to enqueue ProcessTranslationTask", "activity", id, "error", err)
			return
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	if s.collector != nil {
		s.collector.ObserveTask(string(task.GetType()), task.GetDuration(), err)
		s.collector.SetQueueDepth(len(s.taskQueue))
	}

	if err == nil {
		s.finish(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.finish(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.finish(task)
		case <-s.clock.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.finish(task)
			}
		}
	}()
}

func (s *Scheduler) finish(task TaskInterface) {
	if task.GetType() == TaskTypeProcessTranslation {
		s.release(task.GetSubject())
	}
}
