package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lastseen/internal/model"
)

// ActivityTracker はアクティビティ記録の入口インターフェース。
// activity.Trackerの部分集合として定義する。
type ActivityTracker interface {
	Track(ctx context.Context, event model.ActivityEvent)
}

// TrackConfig は追跡ミドルウェアの設定を保持する。
type TrackConfig struct {
	// TrackAnonymous がfalseの場合、未認証リクエストは記録しない。
	TrackAnonymous bool
	// IgnoredRoutes は記録対象外とするパスパターン。*は任意の文字列（/を含む）に一致する。
	IgnoredRoutes []string
}

// NewTrackMiddleware はリクエストからアクティビティイベントを構築して記録する
// ミドルウェアを返す。セッションミドルウェアの後に配置すること。
//
// レスポンス送出後に記録するため、記録の遅延や失敗がレスポンスに影響することはない。
// 以下のリクエストは記録しない:
//   - 除外パターンに一致するパス
//   - TrackAnonymous無効時の未認証リクエスト
//   - 2xx以外のレスポンス
//
// 記録時のコンテキストはcontext.WithoutCancelで切り離す。クライアント切断で
// リクエストコンテキストがキャンセルされても、進行中の書き込みは巻き戻さない。
func NewTrackMiddleware(tracker ActivityTracker, config TrackConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			if matchesAny(r.URL.Path, config.IgnoredRoutes) {
				return
			}

			userID, _ := UserIDFromContext(r.Context())
			if userID == "" && !config.TrackAnonymous {
				return
			}

			if rec.statusCode < 200 || rec.statusCode >= 300 {
				return
			}

			sessionID, _ := SessionIDFromContext(r.Context())

			event := model.ActivityEvent{
				UserID:     userID,
				SessionID:  sessionID,
				IPAddress:  clientIP(r),
				UserAgent:  r.UserAgent(),
				RouteLabel: routeLabel(r),
				URL:        requestURL(r),
			}

			tracker.Track(context.WithoutCancel(r.Context()), event)
		})
	}
}

// matchesAny はパスがいずれかのパターンに一致するかを返す。
// パターンの*は/を含む任意の文字列に一致する（例: "/api/*" は "/api/a/b" に一致）。
func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchWildcard(path, pattern) {
			return true
		}
	}
	return false
}

// matchWildcard は*ワイルドカード付きパターンの一致判定を行う。
func matchWildcard(s, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return s == pattern
	}

	parts := strings.Split(pattern, "*")

	// 先頭部分は前方一致
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	// 中間部分は順に出現すればよい
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	// 末尾部分は後方一致（空ならパターンが*で終わる）
	last := parts[len(parts)-1]
	return strings.HasSuffix(s, last)
}

// clientIP はリクエスト元のIPアドレスを返す。
// プロキシ経由の場合はX-Forwarded-Forの先頭を優先する。
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeLabel はchiのルートパターンを返す。ルーティング外のリクエストでは空。
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// requestURL はリクエストの完全なURLを返す。
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
