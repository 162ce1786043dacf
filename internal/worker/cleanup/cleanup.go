// Package cleanup はアクティビティレコードの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過したレコードを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/lastseen/internal/clock"
	"github.com/hitoshi/lastseen/internal/metrics"
)

// ActivityDeleter は削除処理に必要なリポジトリ操作のインターフェース。
// repository.ActivityRepositoryの部分集合として定義する。
type ActivityDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper は保持期間を超過したアクティビティレコードの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// タイムスタンプ条件で削除するため、実行中のライブトラフィックと並行しても
// 実行開始後に書き込まれた行を巻き込まない。
type Sweeper struct {
	repo          ActivityDeleter
	clk           clock.Clock
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	RetentionDays int // レコードの保持日数。0以下で無効（何も削除しない）
}

// NewSweeper は新しいSweeperを生成する。
// retentionDaysが0以下の場合、Runは何もせず0を返す。
func NewSweeper(repo ActivityDeleter, clk clock.Clock, logger *slog.Logger, collector metrics.MetricsCollector, retentionDays int) *Sweeper {
	return &Sweeper{
		repo:          repo,
		clk:           clk,
		logger:        logger,
		metrics:       collector,
		RetentionDays: retentionDays,
	}
}

// cutoff は削除の基準時刻（now - RetentionDays日）を返す。
func (s *Sweeper) cutoff() time.Time {
	return s.clk.Now().AddDate(0, 0, -s.RetentionDays)
}

// Run は保持期間を超過したレコードを削除し、削除件数を返す。
// 保持期間が無効（0以下）の場合はレコードに触れず0を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	if s.RetentionDays <= 0 {
		s.logger.Info("クリーンアップは無効化されているためスキップします")
		return 0, nil
	}

	start := time.Now()
	cutoff := s.cutoff()

	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("アクティビティクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", s.RetentionDays),
		)
		return 0, fmt.Errorf("アクティビティクリーンアップの実行に失敗: %w", err)
	}

	s.metrics.RecordCleanupDeleted(deleted)

	duration := time.Since(start)
	s.logger.Info("アクティビティクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", s.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return deleted, nil
}

// DryRun は削除対象のレコード数を返す。削除は行わない。
// 実際のRunが削除する件数と同じ値を報告する（オペレーターの事前確認用）。
func (s *Sweeper) DryRun(ctx context.Context) (int64, error) {
	if s.RetentionDays <= 0 {
		return 0, nil
	}

	count, err := s.repo.CountOlderThan(ctx, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("削除対象件数の取得に失敗: %w", err)
	}

	s.logger.Info("クリーンアップのドライランが完了しました",
		slog.Int64("would_delete_count", count),
		slog.Int("retention_days", s.RetentionDays),
	)

	return count, nil
}

// RunDaily は24時間ごとにRunを実行し続ける。起動直後にも1回実行する。
// コンテキストのキャンセルで停止する。ワーカーモードから利用する。
func (s *Sweeper) RunDaily(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
