package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherMetricNames はレジストリから登録済みメトリクス名を収集するテストヘルパー。
func gatherMetricNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

// TestCollector_RegistersAllMetrics は全メトリクスがレジストリに登録されることを検証する。
func TestCollector_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// ラベル付き・ヒストグラム系は1回観測しないとGatherに現れない
	c.RecordActivityWrite()
	c.RecordActivitySuppressed()
	c.RecordTrackError("storage")
	c.RecordCacheError()
	c.RecordTrackLatency(10 * time.Millisecond)
	c.RecordCleanupDeleted(5)
	c.RecordHTTPStatus(200)

	names := gatherMetricNames(t, reg)

	want := []string{
		"lastseen_activity_writes_total",
		"lastseen_activity_suppressed_total",
		"lastseen_track_errors_total",
		"lastseen_cache_errors_total",
		"lastseen_track_latency_seconds",
		"lastseen_cleanup_deleted_total",
		"lastseen_http_status_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("メトリクス %q が登録されていない", name)
		}
	}
}

// TestCollector_CountsWrites は書き込みカウンタの加算を検証する。
func TestCollector_CountsWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordActivityWrite()
	c.RecordActivityWrite()
	c.RecordActivitySuppressed()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, f := range families {
		switch f.GetName() {
		case "lastseen_activity_writes_total":
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Errorf("writes = %v, want 2", got)
			}
		case "lastseen_activity_suppressed_total":
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Errorf("suppressed = %v, want 1", got)
			}
		}
	}
}

// TestNoop_ImplementsInterface はNoopが全メソッドを安全に実行できることを検証する。
func TestNoop_ImplementsInterface(t *testing.T) {
	var c MetricsCollector = Noop{}

	c.RecordActivityWrite()
	c.RecordActivitySuppressed()
	c.RecordTrackError("storage")
	c.RecordCacheError()
	c.RecordTrackLatency(time.Millisecond)
	c.RecordCleanupDeleted(1)
	c.RecordHTTPStatus(200)
}
