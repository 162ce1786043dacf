// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// トラッカーやワーカーから利用する。
type MetricsCollector interface {
	RecordActivityWrite()
	RecordActivitySuppressed()
	RecordTrackError(reason string)
	RecordCacheError()
	RecordTrackLatency(duration time.Duration)
	RecordCleanupDeleted(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	activityWrites     prometheus.Counter
	activitySuppressed prometheus.Counter
	trackErrors        *prometheus.CounterVec
	cacheErrors        prometheus.Counter
	trackLatency       prometheus.Histogram
	cleanupDeleted     prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activityWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lastseen_activity_writes_total",
			Help: "アクティビティのDB書き込み合計数",
		}),
		activitySuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lastseen_activity_suppressed_total",
			Help: "キャッシュにより抑制された書き込みの合計数",
		}),
		trackErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lastseen_track_errors_total",
			Help: "記録処理で握りつぶされたエラーの合計数",
		}, []string{"reason"}),
		cacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lastseen_cache_errors_total",
			Help: "キャッシュミス扱いとなったキャッシュエラーの合計数",
		}),
		trackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lastseen_track_latency_seconds",
			Help:    "記録処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lastseen_cleanup_deleted_total",
			Help: "クリーンアップで削除されたレコードの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lastseen_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.activityWrites,
		c.activitySuppressed,
		c.trackErrors,
		c.cacheErrors,
		c.trackLatency,
		c.cleanupDeleted,
		c.httpStatus,
	)

	return c
}

// RecordActivityWrite はDB書き込みを記録する。
func (c *Collector) RecordActivityWrite() {
	c.activityWrites.Inc()
}

// RecordActivitySuppressed はキャッシュによる書き込み抑制を記録する。
func (c *Collector) RecordActivitySuppressed() {
	c.activitySuppressed.Inc()
}

// RecordTrackError は記録処理のエラーを理由別に記録する。
func (c *Collector) RecordTrackError(reason string) {
	c.trackErrors.WithLabelValues(reason).Inc()
}

// RecordCacheError はキャッシュエラーを記録する。
func (c *Collector) RecordCacheError() {
	c.cacheErrors.Inc()
}

// RecordTrackLatency は記録処理のレイテンシを記録する。
func (c *Collector) RecordTrackLatency(duration time.Duration) {
	c.trackLatency.Observe(duration.Seconds())
}

// RecordCleanupDeleted はクリーンアップの削除件数を記録する。
func (c *Collector) RecordCleanupDeleted(count int64) {
	c.cleanupDeleted.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Noop は何も記録しないMetricsCollector実装。テスト用。
type Noop struct{}

func (Noop) RecordActivityWrite()               {}
func (Noop) RecordActivitySuppressed()          {}
func (Noop) RecordTrackError(reason string)     {}
func (Noop) RecordCacheError()                  {}
func (Noop) RecordTrackLatency(d time.Duration) {}
func (Noop) RecordCleanupDeleted(count int64)   {}
func (Noop) RecordHTTPStatus(statusCode int)    {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
