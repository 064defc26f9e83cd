package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(NewCollector()); err != nil {
		t.Fatalf("Expected collector to register, got %v", err)
	}
}

func TestObserveTask(t *testing.T) {
	c := NewCollector()

	c.ObserveTask("detect_updates", time.Second, nil)
	c.ObserveTask("detect_updates", 2*time.Second, errors.New("boom"))
	c.ObserveTask("detect_updates", time.Second, nil)

	if got := testutil.ToFloat64(c.taskOutcomes.WithLabelValues("detect_updates", "success")); got != 2 {
		t.Errorf("Expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(c.taskOutcomes.WithLabelValues("detect_updates", "error")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestActivityAndTranslationCounters(t *testing.T) {
	c := NewCollector()

	c.AddNewActivities("go", 3)
	c.AddNewActivities("go", 2)
	c.ObserveTranslation("skipped", "already_processing")
	c.SetQueueDepth(7)

	if got := testutil.ToFloat64(c.newActivities.WithLabelValues("go")); got != 5 {
		t.Errorf("Expected 5 new activities, got %v", got)
	}
	if got := testutil.ToFloat64(c.translationOutcomes.WithLabelValues("skipped", "already_processing")); got != 1 {
		t.Errorf("Expected 1 skipped translation, got %v", got)
	}
	if got := testutil.ToFloat64(c.queueDepth); got != 7 {
		t.Errorf("Expected queue depth 7, got %v", got)
	}
}
