package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/lastseen/internal/cache"
	"github.com/hitoshi/lastseen/internal/clock"
	"github.com/hitoshi/lastseen/internal/metrics"
	"github.com/hitoshi/lastseen/internal/model"
	"github.com/hitoshi/lastseen/internal/repository"
	"github.com/hitoshi/lastseen/internal/security"
)

// TrackerConfig はTrackerの設定を保持する。
type TrackerConfig struct {
	CacheTTL  time.Duration // 書き込み抑制ウィンドウ
	KeyPrefix string        // キャッシュキーのプレフィックス
}

// Tracker はアクティビティイベントの記録を調停する。
// 同一識別子への書き込みをキャッシュTTLウィンドウ内で1回に抑える。
// 並行する2リクエストが両方ともキャッシュミスになった場合は両方書き込まれるが、
// UPSERTは冪等で最後の書き込みが勝つため正しさは損なわれない（分散ロックは使わない）。
type Tracker struct {
	repo      repository.ActivityRepository
	cache     cache.SuppressionCache
	clk       clock.Clock
	sanitizer security.FieldSanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	config    TrackerConfig
}

// NewTracker は新しいTrackerを生成する。
func NewTracker(
	repo repository.ActivityRepository,
	suppression cache.SuppressionCache,
	clk clock.Clock,
	sanitizer security.FieldSanitizer,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	config TrackerConfig,
) *Tracker {
	return &Tracker{
		repo:      repo,
		cache:     suppression,
		clk:       clk,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   collector,
		config:    config,
	}
}

// Track はアクティビティイベントを記録する。
//
// 記録はオブザーバビリティであってリクエスト処理の正しさではないため、
// エラーを返さない。ストレージ障害はログとメトリクスに残して握りつぶし、
// キャッシュ障害はキャッシュミスとして扱う（フェイルオープン）。
// 記録の失敗がホストリクエストを失敗させることは決してない。
func (t *Tracker) Track(ctx context.Context, event model.ActivityEvent) {
	start := t.clk.Now()

	if !event.HasIdentity() {
		t.logger.Warn("識別子のないイベントを破棄しました",
			slog.String("url", event.URL),
		)
		t.metrics.RecordTrackError("invalid_identity")
		return
	}

	key := t.cacheKey(event)

	suppress, err := t.cache.ShouldSuppress(ctx, key)
	if err != nil {
		// キャッシュ障害時はミスとして扱い、書き込みを続行する
		t.logger.Warn("suppression cache check failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		t.metrics.RecordCacheError()
		suppress = false
	}
	if suppress {
		t.metrics.RecordActivitySuppressed()
		return
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = t.clk.Now()
	}

	// 攻撃者が制御可能なフィールドは保存前にサニタイズする
	record := &model.ActivityRecord{
		UserID:       event.UserID,
		SessionID:    event.SessionID,
		IPAddress:    event.IPAddress,
		UserAgent:    t.sanitizer.SanitizeUserAgent(event.UserAgent),
		RouteLabel:   t.sanitizer.SanitizeRouteLabel(event.RouteLabel),
		URL:          t.sanitizer.SanitizeURL(event.URL),
		LastActivity: occurredAt,
	}

	if err := t.repo.Upsert(ctx, record); err != nil {
		t.logger.Error("アクティビティの書き込みに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		t.metrics.RecordTrackError("storage")
		return
	}
	t.metrics.RecordActivityWrite()

	if err := t.cache.MarkWritten(ctx, key, t.config.CacheTTL); err != nil {
		// マーク失敗は次のイベントが余分に書き込まれるだけで、正しさには影響しない
		t.logger.Warn("suppression cache mark failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		t.metrics.RecordCacheError()
	}

	t.metrics.RecordTrackLatency(t.clk.Now().Sub(start))
}

// cacheKey はイベントの識別子からキャッシュキーを算出する。
// 認証済みは "<prefix>:user:<id>"、匿名は "<prefix>:session:<sid>"。
func (t *Tracker) cacheKey(event model.ActivityEvent) string {
	if event.UserID != "" {
		return fmt.Sprintf("%s:user:%s", t.config.KeyPrefix, event.UserID)
	}
	return fmt.Sprintf("%s:session:%s", t.config.KeyPrefix, event.SessionID)
}
