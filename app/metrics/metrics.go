package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gh_digest"

// Collector is a prometheus.Collector for the scheduler, the detector and the
// translation worker.
type Collector struct {
	taskDuration        *prometheus.HistogramVec
	taskOutcomes        *prometheus.CounterVec
	newActivities       *prometheus.CounterVec
	translationOutcomes *prometheus.CounterVec
	queueDepth          prometheus.Gauge
}

func NewCollector() *Collector {
	return &Collector{
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Time spent executing scheduler tasks.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			}, []string{"task_type"},
		),
		taskOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_outcomes_total",
				Help:      "Scheduler task executions by result.",
			}, []string{"task_type", "outcome"},
		),
		newActivities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "new_activities_total",
				Help:      "Activities stored for the first time.",
			}, []string{"target"},
		),
		translationOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translation_outcomes_total",
				Help:      "Translation processing results.",
			}, []string{"outcome", "reason"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "task_queue_depth",
				Help:      "Tasks waiting for a worker.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.taskDuration.Describe(ch)
	c.taskOutcomes.Describe(ch)
	c.newActivities.Describe(ch)
	c.translationOutcomes.Describe(ch)
	c.queueDepth.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.taskDuration.Collect(ch)
	c.taskOutcomes.Collect(ch)
	c.newActivities.Collect(ch)
	c.translationOutcomes.Collect(ch)
	c.queueDepth.Collect(ch)
}

func (c *Collector) ObserveTask(taskType string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.taskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
	c.taskOutcomes.WithLabelValues(taskType, outcome).Inc()
}

func (c *Collector) AddNewActivities(target string, count int) {
	c.newActivities.WithLabelValues(target).Add(float64(count))
}

func (c *Collector) ObserveTranslation(outcome, reason string) {
	c.translationOutcomes.WithLabelValues(outcome, reason).Inc()
}

func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
