// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/lastseen/internal/model"
)

// ActivityRepository はアクティビティレコードの永続化インターフェース。
// 時刻の閾値（since/cutoff）は呼び出し側がClockから算出して渡す。
// SQL内でnow()を使わないことで、時刻に依存するロジックをテスト可能に保つ。
type ActivityRepository interface {
	// Upsert はレコードを識別キーでUPSERTする。
	// UserIDがあればuser_id、なければsession_idをキーに既存行を更新するか新規行を挿入する。
	// 1文のINSERT ... ON CONFLICTで実行され、同一キーへの並行UPSERTでも行が壊れない
	// （最後に完了した書き込みが勝つ）。
	Upsert(ctx context.Context, record *model.ActivityRecord) error

	// FindLatestByUser は指定ユーザーの最新レコードを取得する。見つからない場合はnilを返す。
	FindLatestByUser(ctx context.Context, userID string) (*model.ActivityRecord, error)

	// ListByUser は指定ユーザーのレコードをlast_activity降順で最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityRecord, error)

	// ExistsActiveUser は指定ユーザーにlast_activity >= sinceのレコードが存在するかを返す。
	ExistsActiveUser(ctx context.Context, userID string, since time.Time) (bool, error)

	// ExistsActiveSession は指定セッションにlast_activity >= sinceのレコードが存在するかを返す。
	ExistsActiveSession(ctx context.Context, sessionID string, since time.Time) (bool, error)

	// ListActiveUserIDs はlast_activity >= sinceの認証済みユーザーIDを重複なしで返す。
	// 匿名レコード（user_id IS NULL）は含まれない。
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	// CountActiveUsers はlast_activity >= sinceの認証済みユーザー数（DISTINCT user_id）を返す。
	CountActiveUsers(ctx context.Context, since time.Time) (int, error)

	// DeleteOlderThan はlast_activity < cutoffの全レコードを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// CountOlderThan はlast_activity < cutoffのレコード数を返す。削除は行わない。
	// クリーンアップのドライラン用。
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionRepository はログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
