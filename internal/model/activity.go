// Package model はドメインモデルを定義する。
package model

import "time"

// ActivityEvent は1リクエスト分のアクティビティ入力を表す。
// 呼び出し側（ミドルウェア）がリクエストごとに構築する一時データで、永続化されない。
// UserIDとSessionIDはどちらか一方のみが識別キーとして使われる
// （UserIDがあればUserID、なければSessionID）。
type ActivityEvent struct {
	UserID     string // 認証済みユーザーのID。匿名の場合は空
	SessionID  string // セッションID
	IPAddress  string
	UserAgent  string
	RouteLabel string // ルート名。未設定の場合は空
	URL        string
	OccurredAt time.Time // ゼロ値の場合は記録時にclock.Now()で補完される
}

// HasIdentity はイベントが有効な識別子を持つかを返す。
// UserIDもSessionIDも空のイベントは記録できない。
func (e ActivityEvent) HasIdentity() bool {
	return e.UserID != "" || e.SessionID != ""
}

// ActivityRecord はuser_activitiesテーブルの1行を表す。
// 識別子（ユーザーまたは匿名セッション）ごとに最大1行が維持され、
// 記録のたびに最新の値で上書きされる。
type ActivityRecord struct {
	ID           string
	UserID       string // 匿名レコードの場合は空（DB上はNULL）
	SessionID    string
	IPAddress    string
	UserAgent    string
	RouteLabel   string
	URL          string
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAnonymous は匿名セッションのレコードかを返す。
func (r *ActivityRecord) IsAnonymous() bool {
	return r.UserID == ""
}

// DisplayRoute はルート名を返す。ルート名がない場合はURLを返す。
func (r *ActivityRecord) DisplayRoute() string {
	if r.RouteLabel != "" {
		return r.RouteLabel
	}
	return r.URL
}
