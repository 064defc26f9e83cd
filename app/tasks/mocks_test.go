package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/translation"
)

// MockTargetRepository implements a simple in-memory target store for testing
type MockTargetRepository struct {
	mu         sync.Mutex
	targets    map[string]*database.Target // keyed by name
	watchers   map[string][]string
	nextChecks map[string]time.Time
	err        error
}

var _ database.TargetRepository = (*MockTargetRepository)(nil)

func NewMockTargetRepository(targets ...*database.Target) *MockTargetRepository {
	m := &MockTargetRepository{
		targets:    make(map[string]*database.Target),
		watchers:   make(map[string][]string),
		nextChecks: make(map[string]time.Time),
	}
	for _, target := range targets {
		m.targets[target.Name] = target
	}
	return m
}

func (m *MockTargetRepository) GetTarget(ctx context.Context, id string) (*database.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, target := range m.targets {
		if target.ID == id {
			return target, nil
		}
	}
	return nil, nil
}

func (m *MockTargetRepository) GetTargetByName(ctx context.Context, name string) (*database.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.targets[name], nil
}

func (m *MockTargetRepository) GetTargetCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.targets), nil
}

func (m *MockTargetRepository) ListTargets(ctx context.Context) ([]database.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []database.Target
	for _, target := range m.targets {
		result = append(result, *target)
	}
	return result, nil
}

func (m *MockTargetRepository) UpsertTarget(ctx context.Context, name, fullName, sourceType string) (*database.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	target, ok := m.targets[name]
	if !ok {
		target = &database.Target{ID: "id-" + name, Name: name}
		m.targets[name] = target
	}
	target.FullName = fullName
	target.SourceType = sourceType
	return target, nil
}

func (m *MockTargetRepository) SetWatchers(ctx context.Context, targetID string, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers[targetID] = userIDs
	return nil
}

func (m *MockTargetRepository) UpdateNextCheck(ctx context.Context, targetID string, nextCheck time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChecks[targetID] = nextCheck
	return nil
}

// MockActivityRepository only serves the pending translation listing
type MockActivityRepository struct {
	database.ActivityRepository
	pending []string
	err     error
}

func (m *MockActivityRepository) ListPendingTranslations(ctx context.Context, limit int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pending, nil
}

type MockDetector struct {
	mu     sync.Mutex
	calls  []string
	newIDs []string
	err    error
}

func (m *MockDetector) DetectUpdates(ctx context.Context, targetID string) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, targetID)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.newIDs, nil
}

func (m *MockDetector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type MockProcessor struct {
	mu        sync.Mutex
	queued    []string
	processed []string
	result    *translation.ProcessResult
	err       error
}

func (m *MockProcessor) ProcessTranslation(ctx context.Context, activityID string) (*translation.ProcessResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, activityID)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &translation.ProcessResult{Outcome: translation.ProcessCompleted, ActivityID: activityID}, nil
}

func (m *MockProcessor) QueueTranslation(ctx context.Context, activityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, activityID)
	return true, nil
}

// failingTask always fails, for exercising the retry path
type failingTask struct {
	Task
}

func (t *failingTask) Execute(ctx context.Context) error {
	return errTaskFailed
}

var errTaskFailed = errors.New("task failed")
