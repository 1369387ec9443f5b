package render

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testMetrics struct {
	registry *prometheus.Registry
	metrics  *PrometheusMetrics
}

func newTestMetrics(t *testing.T) *testMetrics {
	t.Helper()
	registry := prometheus.NewRegistry()
	return &testMetrics{registry: registry, metrics: NewPrometheusMetrics(registry)}
}

// counter reads one labelled child of a counter vector.
func (m *testMetrics) counter(t *testing.T, name, label string) float64 {
	t.Helper()
	switch name {
	case "filmstrip_cache_hits_total":
		return testutil.ToFloat64(m.metrics.cacheHits.WithLabelValues(label))
	case "filmstrip_cache_evictions_total":
		return testutil.ToFloat64(m.metrics.cacheEvictions.WithLabelValues(label))
	case "filmstrip_frames_delivered_total":
		return testutil.ToFloat64(m.metrics.framesDelivered.WithLabelValues(label))
	}
	t.Fatalf("unknown counter %s", name)
	return 0
}

func TestPrometheusMetrics_Registration(t *testing.T) {
	m := newTestMetrics(t)

	m.metrics.TaskStarted()
	m.metrics.TaskFinished("job-1", 12*time.Millisecond, "success")
	m.metrics.UpdateQueueDepth(7)
	m.metrics.UpdateReorderPending(3)
	m.metrics.IncrementCacheHits(RolePrimary)
	m.metrics.IncrementCacheEvictions(RoleSubTask)
	m.metrics.IncrementFramesDelivered("job-1")
	m.metrics.IncrementAborts()

	count, err := testutil.GatherAndCount(m.registry)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// inflight, queue depth, reorder pending, latency, hits, evictions,
	// delivered, aborts.
	if count != 8 {
		t.Errorf("expected 8 metric series, got %d", count)
	}

	if got := testutil.ToFloat64(m.metrics.queueDepth); got != 7 {
		t.Errorf("queue_depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.metrics.reorderPending); got != 3 {
		t.Errorf("reorder_pending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.metrics.inflightTasks); got != 0 {
		t.Errorf("inflight_tasks = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.metrics.aborts); got != 1 {
		t.Errorf("aborts_total = %v, want 1", got)
	}
}

func TestPrometheusMetrics_DisableAndNil(t *testing.T) {
	m := newTestMetrics(t)
	m.metrics.Disable()
	m.metrics.IncrementFramesDelivered("job-x")
	if got := m.counter(t, "filmstrip_frames_delivered_total", "job-x"); got != 0 {
		t.Errorf("disabled metrics recorded %v", got)
	}
	m.metrics.Enable()
	m.metrics.IncrementFramesDelivered("job-x")
	if got := m.counter(t, "filmstrip_frames_delivered_total", "job-x"); got != 1 {
		t.Errorf("expected 1 after Enable, got %v", got)
	}

	m.metrics.UpdateQueueDepth(9)
	m.metrics.Reset()
	if got := testutil.ToFloat64(m.metrics.queueDepth); got != 0 {
		t.Errorf("Reset left queue_depth at %v", got)
	}

	// A nil collector is valid and records nothing.
	var none *PrometheusMetrics
	none.TaskStarted()
	none.IncrementAborts()
}

func TestPrometheusMetrics_Job(t *testing.T) {
	m := newTestMetrics(t)
	r := newTestRenderer()

	job, err := NewJob("metrics", r, nil, seqTasks(25, 0), WithMetrics(m.metrics), WithWorkers(4))
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := m.counter(t, "filmstrip_frames_delivered_total", job.ID()); got != 25 {
		t.Errorf("frames_delivered_total = %v, want 25", got)
	}
	if got := m.counter(t, "filmstrip_cache_evictions_total", "primary"); got != 25 {
		t.Errorf("cache_evictions_total = %v, want 25", got)
	}
	if got := testutil.ToFloat64(m.metrics.inflightTasks); got != 0 {
		t.Errorf("inflight_tasks = %v after the job", got)
	}
	if got := testutil.ToFloat64(m.metrics.reorderPending); got != 0 {
		t.Errorf("reorder_pending = %v after the job", got)
	}
}

func TestPrometheusMetrics_PanicReleasesInflight(t *testing.T) {
	m := newTestMetrics(t)
	tasks := seqTasks(3, 0)
	tasks[1] = &TaskFunc{
		ID: "panics",
		Fn: func(ctx context.Context, jc JobContext) (image.Image, error) {
			panic("bad frame")
		},
	}

	job, _ := NewJob("panic", newTestRenderer(), nil, tasks, WithMetrics(m.metrics), WithWorkers(1))
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected the panic to fail the job")
	}
	if got := testutil.ToFloat64(m.metrics.inflightTasks); got != 0 {
		t.Errorf("inflight_tasks = %v after a panic", got)
	}
}
