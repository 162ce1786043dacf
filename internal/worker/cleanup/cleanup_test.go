package cleanup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/lastseen/internal/clock"
	"github.com/hitoshi/lastseen/internal/metrics"
)

// mockActivityDeleter はActivityDeleterのモック実装。
type mockActivityDeleter struct {
	deleteOlderThanFn func(ctx context.Context, cutoff time.Time) (int64, error)
	countOlderThanFn  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockActivityDeleter) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteOlderThanFn != nil {
		return m.deleteOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockActivityDeleter) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.countOlderThanFn != nil {
		return m.countOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

var cleanupTestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSweeper(repo ActivityDeleter, retentionDays int, buf *bytes.Buffer) *Sweeper {
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	return NewSweeper(repo, clock.NewFake(cleanupTestNow), logger, metrics.Noop{}, retentionDays)
}

// TestSweeper_Run_DeletesWithRetentionCutoff は保持期間から計算された
// カットオフ時刻で削除されることを検証する。
func TestSweeper_Run_DeletesWithRetentionCutoff(t *testing.T) {
	var buf bytes.Buffer
	var gotCutoff time.Time
	repo := &mockActivityDeleter{
		deleteOlderThanFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 42, nil
		},
	}
	sweeper := newTestSweeper(repo, 30, &buf)

	deleted, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d, want 42", deleted)
	}

	wantCutoff := cleanupTestNow.AddDate(0, 0, -30)
	if !gotCutoff.Equal(wantCutoff) {
		t.Errorf("cutoff = %v, want %v", gotCutoff, wantCutoff)
	}

	if !strings.Contains(buf.String(), "deleted_count") {
		t.Errorf("完了ログにdeleted_countが含まれるべき。ログ出力: %s", buf.String())
	}
}

// TestSweeper_Run_DisabledRetentionIsNoOp は保持期間0以下で何も削除されない
// ことを検証する。
func TestSweeper_Run_DisabledRetentionIsNoOp(t *testing.T) {
	for _, days := range []int{0, -1} {
		var buf bytes.Buffer
		repo := &mockActivityDeleter{
			deleteOlderThanFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
				t.Errorf("retentionDays=%d でDeleteOlderThanが呼ばれてはならない", days)
				return 0, nil
			},
		}
		sweeper := newTestSweeper(repo, days, &buf)

		deleted, err := sweeper.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if deleted != 0 {
			t.Errorf("deleted = %d, want 0", deleted)
		}
	}
}

// TestSweeper_Run_ZeroDeletionsIsNotAnError は削除対象なしでもエラーに
// ならないことを検証する（冪等性）。
func TestSweeper_Run_ZeroDeletionsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	sweeper := newTestSweeper(&mockActivityDeleter{}, 30, &buf)

	deleted, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

// TestSweeper_Run_PropagatesStorageError はストレージ障害がラップされて
// 伝播することを検証する。
func TestSweeper_Run_PropagatesStorageError(t *testing.T) {
	var buf bytes.Buffer
	storageErr := errors.New("connection refused")
	repo := &mockActivityDeleter{
		deleteOlderThanFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, storageErr
		},
	}
	sweeper := newTestSweeper(repo, 30, &buf)

	_, err := sweeper.Run(context.Background())
	if !errors.Is(err, storageErr) {
		t.Errorf("Run() error = %v, want wrapped %v", err, storageErr)
	}
}

// TestSweeper_DryRun_ReportsWithoutDeleting はドライランが削除せずに
// 対象件数のみ報告することを検証する。
func TestSweeper_DryRun_ReportsWithoutDeleting(t *testing.T) {
	var buf bytes.Buffer
	var gotCutoff time.Time
	repo := &mockActivityDeleter{
		deleteOlderThanFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			t.Error("ドライランでDeleteOlderThanが呼ばれてはならない")
			return 0, nil
		},
		countOlderThanFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 17, nil
		},
	}
	sweeper := newTestSweeper(repo, 30, &buf)

	count, err := sweeper.DryRun(context.Background())
	if err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}
	if count != 17 {
		t.Errorf("count = %d, want 17", count)
	}

	// RunとDryRunは同じカットオフを使う
	wantCutoff := cleanupTestNow.AddDate(0, 0, -30)
	if !gotCutoff.Equal(wantCutoff) {
		t.Errorf("cutoff = %v, want %v", gotCutoff, wantCutoff)
	}
}

// TestSweeper_DryRun_DisabledRetention は保持期間無効時のドライランを検証する。
func TestSweeper_DryRun_DisabledRetention(t *testing.T) {
	var buf bytes.Buffer
	sweeper := newTestSweeper(&mockActivityDeleter{}, 0, &buf)

	count, err := sweeper.DryRun(context.Background())
	if err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

// TestSweeper_RunDaily_RunsImmediatelyAndStopsOnCancel は起動直後の実行と
// キャンセルによる停止を検証する。
func TestSweeper_RunDaily_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	ran := make(chan struct{}, 1)
	repo := &mockActivityDeleter{
		deleteOlderThanFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			select {
			case ran <- struct{}{}:
			default:
			}
			return 0, nil
		},
	}
	sweeper := newTestSweeper(repo, 30, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.RunDaily(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("起動直後にRunが実行されるべき")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にRunDailyが停止するべき")
	}
}
