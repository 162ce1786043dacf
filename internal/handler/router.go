package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lastseen/internal/metrics"
	"github.com/hitoshi/lastseen/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBを受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	SessionCookie     middleware.SessionCookieConfig
	Tracker           middleware.ActivityTracker
	TrackConfig       middleware.TrackConfig
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string

	// 照会サービス
	PresenceService PresenceServiceInterface

	// AppHandler は追跡対象となるアプリケーションルートのハンドラー。
	// 照会API以外のパスへのリクエストがここに委譲され、成功レスポンスが
	// アクティビティとして記録される。nilの場合は404を返すだけのハンドラーになる。
	AppHandler http.Handler

	// 運用
	HealthChecker HealthChecker
	Logger        *slog.Logger
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → Track → RateLimit
//
// /health と /metrics はセッション・追跡・レート制限の外に配置する。
// 照会API（/api/presence/*）はデフォルトの除外パターンに含まれるため、
// プレゼンスのポーリング自体がアクティビティとして記録されることはない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	presenceHandler := NewPresenceHandler(deps.PresenceService)

	// --- 運用ルート（セッション・追跡なし） ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 追跡対象ルート ---
	// ミドルウェアスタック: Session → Logging → Track → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.SessionCookie))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
		r.Use(middleware.NewTrackMiddleware(deps.Tracker, deps.TrackConfig))

		// 照会API
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.Middleware())

			r.Route("/api/presence", func(r chi.Router) {
				r.Get("/online", presenceHandler.ListOnlineUsers)
				r.Get("/online/count", presenceHandler.GetOnlineCount)

				r.Route("/users/{id}", func(r chi.Router) {
					r.Get("/", presenceHandler.GetUserPresence)
					r.Get("/activity", presenceHandler.GetUserActivity)
					r.Get("/activities", presenceHandler.ListUserActivities)
				})

				r.Get("/sessions/{id}", presenceHandler.GetSessionActive)
			})
		})

		// アプリケーションルート（追跡対象本体）
		if deps.AppHandler != nil {
			r.NotFound(deps.AppHandler.ServeHTTP)
		}
	})

	return r
}

// NewHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
