package activity

import (
	"context"
	"time"

	"github.com/hitoshi/lastseen/internal/clock"
	"github.com/hitoshi/lastseen/internal/model"
	"github.com/hitoshi/lastseen/internal/repository"
)

// defaultActivitiesLimit はUserActivitiesのデフォルト取得件数。
const defaultActivitiesLimit = 10

// Service はオンライン状態と最終アクセスの照会サービス。
// 閾値の時刻計算をClockで行い、比較条件をリポジトリに渡す。
// 照会系のエラーは記録系と異なり、呼び出し側にそのまま伝播する。
type Service struct {
	repo      repository.ActivityRepository
	clk       clock.Clock
	threshold time.Duration
}

// NewService は新しいServiceを生成する。
// thresholdはオンライン判定の閾値（この時間内のアクティビティをオンラインとみなす）。
func NewService(repo repository.ActivityRepository, clk clock.Clock, threshold time.Duration) *Service {
	return &Service{
		repo:      repo,
		clk:       clk,
		threshold: threshold,
	}
}

// onlineSince はオンライン判定の基準時刻（now - threshold）を返す。
// last_activity >= onlineSince がオンライン。境界は閾値ちょうどを含む。
func (s *Service) onlineSince() time.Time {
	return s.clk.Now().Add(-s.threshold)
}

// IsUserOnline は指定ユーザーが現在オンラインかを返す。
func (s *Service) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return s.repo.ExistsActiveUser(ctx, userID, s.onlineSince())
}

// LastSeen は指定ユーザーの最終アクセスからの経過時間を返す。
// アクティビティが存在しない場合はnilを返す。
func (s *Service) LastSeen(ctx context.Context, userID string) (*time.Duration, error) {
	record, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	elapsed := s.clk.Now().Sub(record.LastActivity)
	return &elapsed, nil
}

// UserPresence はオンライン状態と最終アクセスからの経過時間を1回の照会でまとめて返す。
// レコードが存在しない場合は(false, nil, nil)。
func (s *Service) UserPresence(ctx context.Context, userID string) (bool, *time.Duration, error) {
	record, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	if record == nil {
		return false, nil, nil
	}
	now := s.clk.Now()
	elapsed := now.Sub(record.LastActivity)
	return IsOnline(record.LastActivity, now, s.threshold), &elapsed, nil
}

// OnlineUsers は現在オンラインの認証済みユーザーIDを重複なしで返す。
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.repo.ListActiveUserIDs(ctx, s.onlineSince())
}

// OnlineCount は現在オンラインの認証済みユーザー数を返す。
// 匿名レコードは含まれず、同一ユーザーの複数レコードは1とカウントされる。
func (s *Service) OnlineCount(ctx context.Context) (int, error) {
	return s.repo.CountActiveUsers(ctx, s.onlineSince())
}

// OnlineCountWithinPeriod は指定期間（分）以内にアクティブだった認証済みユーザー数を返す。
// minutesが1未満の場合はバリデーションエラーを返す。
func (s *Service) OnlineCountWithinPeriod(ctx context.Context, minutes int) (int, error) {
	if minutes < 1 {
		return 0, model.NewInvalidPeriodError(minutes)
	}
	since := s.clk.Now().Add(-time.Duration(minutes) * time.Minute)
	return s.repo.CountActiveUsers(ctx, since)
}

// UserActivity は指定ユーザーの最新アクティビティレコードを返す。
// 見つからない場合はnilを返す。
func (s *Service) UserActivity(ctx context.Context, userID string) (*model.ActivityRecord, error) {
	return s.repo.FindLatestByUser(ctx, userID)
}

// UserActivities は指定ユーザーのアクティビティレコードをlast_activity降順で返す。
// limitが0以下の場合はデフォルト（10件）を使用する。
// 通常のフローでは識別子ごとに1行しか存在しないため0〜1件となるが、
// API形状は履歴を保持する構成への移行に備えて複数件を返す形にしてある。
func (s *Service) UserActivities(ctx context.Context, userID string, limit int) ([]*model.ActivityRecord, error) {
	if limit <= 0 {
		limit = defaultActivitiesLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// IsSessionActive は指定セッションが現在アクティブかを返す。
func (s *Service) IsSessionActive(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, model.NewInvalidIdentityError()
	}
	return s.repo.ExistsActiveSession(ctx, sessionID, s.onlineSince())
}
