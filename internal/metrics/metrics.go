package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "needforge_api_request_duration_seconds",
			Help:    "API request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "needforge_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	// Worker metrics
	unitQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "needforge_unit_queue_depth",
			Help: "Current depth of the unit job queue",
		},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "needforge_stage_duration_seconds",
			Help:    "Processing duration breakdown by pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~500s
		},
		[]string{"stage"}, // "experience", "interview", "extraction", "unit"
	)

	// Pipeline metrics
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "needforge_backend_calls_total",
			Help: "Total number of backend calls completed",
		},
		[]string{"stage", "status"}, // status: "success"/"error"
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "needforge_active_workers",
			Help: "Number of active unit workers",
		},
	)

	unitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "needforge_units_total",
			Help: "Total number of persona units processed",
		},
		[]string{"status"}, // "completed"/"failed"
	)

	needsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "needforge_needs_extracted_total",
			Help: "Total number of need statements extracted",
		},
	)
)

// Collector provides convenience methods for recording metrics
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// RecordAPIRequest records an API request duration
func (c *Collector) RecordAPIRequest(model string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	apiRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// SetUnitQueueDepth sets the current unit queue depth
func (c *Collector) SetUnitQueueDepth(depth int) {
	unitQueueDepth.Set(float64(depth))
}

// RecordStageDuration records processing duration for one stage
func (c *Collector) RecordStageDuration(stage string, duration time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// IncrementCalls increments the backend call counter
func (c *Collector) IncrementCalls(stage string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	callsTotal.WithLabelValues(stage, status).Inc()
}

// SetActiveWorkers sets the number of active workers
func (c *Collector) SetActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}

// IncrementUnits increments the processed-unit counter
func (c *Collector) IncrementUnits(success bool) {
	status := "completed"
	if !success {
		status = "failed"
	}
	unitsTotal.WithLabelValues(status).Inc()
}

// AddNeedsExtracted adds to the extracted-need counter
func (c *Collector) AddNeedsExtracted(n int) {
	needsExtracted.Add(float64(n))
}
