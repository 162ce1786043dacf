// Package cache は書き込み抑制（コアレッシング）キャッシュを提供する。
//
// 同一識別子に対するDB書き込みをTTLウィンドウ内で1回に抑えるための
// 存在フラグのみのキャッシュで、データ本体は保持しない。
// エントリがない（期限切れまたは未設定）ことは「抑制しない」を意味する。
package cache

import (
	"context"
	"time"
)

// SuppressionCache は書き込み抑制キャッシュのインターフェース。
// いずれのメソッドも並行呼び出しに対して安全でなければならない。
// エラーを返した場合、呼び出し側はキャッシュミスとして扱う（フェイルオープン）。
type SuppressionCache interface {
	// ShouldSuppress はキーに対する書き込みを抑制すべきかを返す。
	ShouldSuppress(ctx context.Context, key string) (bool, error)

	// MarkWritten はキーの書き込み済みマーカーをTTL付きで設定する。
	// 既存マーカーがある場合はウィンドウをリセットする（最後のマークからの固定窓）。
	MarkWritten(ctx context.Context, key string, ttl time.Duration) error
}

// Disabled は何も抑制しないSuppressionCache実装。
// CACHE_ENABLED=falseの場合に使用し、全イベントがDBに書き込まれる。
type Disabled struct{}

// ShouldSuppress は常にfalseを返す。
func (Disabled) ShouldSuppress(ctx context.Context, key string) (bool, error) {
	return false, nil
}

// MarkWritten は何もしない。
func (Disabled) MarkWritten(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

var _ SuppressionCache = Disabled{}
