package activity

import (
	"context"
	"time"

	"github.com/hitoshi/lastseen/internal/model"
)

// Presence は特定ユーザーのオンライン状態への薄いアダプタ。
// ユーザーIDを保持してServiceに委譲するだけの合成型で、
// 任意のユーザー表現に「オンライン状態」の能力を付与する。
type Presence struct {
	userID string
	svc    *Service
}

// PresenceFor は指定ユーザーのPresenceを生成する。
func PresenceFor(svc *Service, userID string) *Presence {
	return &Presence{userID: userID, svc: svc}
}

// UserID は対象ユーザーのIDを返す。
func (p *Presence) UserID() string {
	return p.userID
}

// IsOnline はユーザーが現在オンラインかを返す。
func (p *Presence) IsOnline(ctx context.Context) (bool, error) {
	return p.svc.IsUserOnline(ctx, p.userID)
}

// LastSeen は最終アクセスからの経過時間を返す。未記録の場合はnil。
func (p *Presence) LastSeen(ctx context.Context) (*time.Duration, error) {
	return p.svc.LastSeen(ctx, p.userID)
}

// WasOnlineWithin は指定期間（分）以内にアクティブだったかを返す。
func (p *Presence) WasOnlineWithin(ctx context.Context, minutes int) (bool, error) {
	if minutes < 1 {
		return false, model.NewInvalidPeriodError(minutes)
	}
	since := p.svc.clk.Now().Add(-time.Duration(minutes) * time.Minute)
	return p.svc.repo.ExistsActiveUser(ctx, p.userID, since)
}

// Latest は最新のアクティビティレコードを返す。未記録の場合はnil。
func (p *Presence) Latest(ctx context.Context) (*model.ActivityRecord, error) {
	return p.svc.UserActivity(ctx, p.userID)
}

// CurrentIP は直近のアクティビティのIPアドレスを返す。未記録の場合は空。
func (p *Presence) CurrentIP(ctx context.Context) (string, error) {
	record, err := p.Latest(ctx)
	if err != nil || record == nil {
		return "", err
	}
	return record.IPAddress, nil
}

// CurrentUserAgent は直近のアクティビティのUser-Agentを返す。未記録の場合は空。
func (p *Presence) CurrentUserAgent(ctx context.Context) (string, error) {
	record, err := p.Latest(ctx)
	if err != nil || record == nil {
		return "", err
	}
	return record.UserAgent, nil
}

// CurrentRoute は直近のアクティビティの表示用ルートを返す。未記録の場合は空。
func (p *Presence) CurrentRoute(ctx context.Context) (string, error) {
	record, err := p.Latest(ctx)
	if err != nil || record == nil {
		return "", err
	}
	return record.DisplayRoute(), nil
}

// CurrentURL は直近のアクティビティのURLを返す。未記録の場合は空。
func (p *Presence) CurrentURL(ctx context.Context) (string, error) {
	record, err := p.Latest(ctx)
	if err != nil || record == nil {
		return "", err
	}
	return record.URL, nil
}
