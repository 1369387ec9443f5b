package render

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects render pipeline metrics.
//
// Metrics exposed (all namespaced with "filmstrip_"):
//
//   - inflight_tasks (gauge): tasks currently being computed by workers.
//   - queue_depth (gauge): work items waiting in the frontier.
//   - reorder_pending (gauge): completed frames waiting for their turn.
//   - task_latency_ms (histogram): per-unit processing time.
//     Labels: job_id, status (success, failed, aborted).
//   - cache_hits_total (counter): results served from memory. Labels: role.
//   - cache_evictions_total (counter): entries dropped after their last
//     reference. Labels: role.
//   - frames_delivered_total (counter): frames handed to the sink. Labels: job_id.
//   - aborts_total (counter): aborted jobs.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := render.NewPrometheusMetrics(registry)
//	engine, _ := render.NewEngine(renderer, profile, progress, render.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	inflightTasks  prometheus.Gauge
	queueDepth     prometheus.Gauge
	reorderPending prometheus.Gauge

	taskLatency *prometheus.HistogramVec

	cacheHits       *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	framesDelivered *prometheus.CounterVec
	aborts          prometheus.Counter

	mu       sync.RWMutex
	enabled  bool
	inflight int
}

// NewPrometheusMetrics creates and registers all render metrics with registry.
// A nil registry selects prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.inflightTasks = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "filmstrip",
		Name:      "inflight_tasks",
		Help:      "Tasks currently being computed by render workers",
	})

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "filmstrip",
		Name:      "queue_depth",
		Help:      "Work items waiting in the render frontier",
	})

	pm.reorderPending = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "filmstrip",
		Name:      "reorder_pending",
		Help:      "Completed frames held back until all earlier frames are delivered",
	})

	pm.taskLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "filmstrip",
		Name:      "task_latency_ms",
		Help:      "Time to produce one output frame, from dequeue to completion",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"job_id", "status"})

	pm.cacheHits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filmstrip",
		Name:      "cache_hits_total",
		Help:      "Task results served from the result cache without recomputation",
	}, []string{"role"})

	pm.cacheEvictions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filmstrip",
		Name:      "cache_evictions_total",
		Help:      "Result cache entries released after their last reference",
	}, []string{"role"})

	pm.framesDelivered = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filmstrip",
		Name:      "frames_delivered_total",
		Help:      "Frames handed to the renderer sink in sequence order",
	}, []string{"job_id"})

	pm.aborts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "filmstrip",
		Name:      "aborts_total",
		Help:      "Render jobs stopped by an abort request",
	})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// TaskStarted increments the inflight gauge.
func (pm *PrometheusMetrics) TaskStarted() {
	if !pm.isEnabled() {
		return
	}
	pm.mu.Lock()
	pm.inflight++
	pm.inflightTasks.Set(float64(pm.inflight))
	pm.mu.Unlock()
}

// TaskFinished decrements the inflight gauge and records the latency.
func (pm *PrometheusMetrics) TaskFinished(jobID string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.mu.Lock()
	pm.inflight--
	pm.inflightTasks.Set(float64(pm.inflight))
	pm.mu.Unlock()

	pm.taskLatency.WithLabelValues(jobID, status).Observe(float64(latency.Milliseconds()))
}

// UpdateQueueDepth sets the number of queued work items.
func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if !pm.isEnabled() {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

// UpdateReorderPending sets the number of frames waiting in the reorder buffer.
func (pm *PrometheusMetrics) UpdateReorderPending(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.reorderPending.Set(float64(n))
}

// IncrementCacheHits counts a memoized result.
func (pm *PrometheusMetrics) IncrementCacheHits(role Role) {
	if !pm.isEnabled() {
		return
	}
	pm.cacheHits.WithLabelValues(role.String()).Inc()
}

// IncrementCacheEvictions counts a released cache entry.
func (pm *PrometheusMetrics) IncrementCacheEvictions(role Role) {
	if !pm.isEnabled() {
		return
	}
	pm.cacheEvictions.WithLabelValues(role.String()).Inc()
}

// IncrementFramesDelivered counts a frame written to the sink.
func (pm *PrometheusMetrics) IncrementFramesDelivered(jobID string) {
	if !pm.isEnabled() {
		return
	}
	pm.framesDelivered.WithLabelValues(jobID).Inc()
}

// IncrementAborts counts an aborted job.
func (pm *PrometheusMetrics) IncrementAborts() {
	if !pm.isEnabled() {
		return
	}
	pm.aborts.Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset clears the gauges. Counters and histograms are cumulative and keep
// their values.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.inflight = 0
	pm.inflightTasks.Set(0)
	pm.queueDepth.Set(0)
	pm.reorderPending.Set(0)
}
