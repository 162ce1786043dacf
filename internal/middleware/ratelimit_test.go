package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// TestRateLimiter_AllowsWithinBurst はバースト以内のリクエストが通過することを検証する。
func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		QueryRate:       rate.Limit(1),
		QueryBurst:      3,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler(http.StatusOK))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/presence/count", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

// TestRateLimiter_RejectsOverBurst はバースト超過リクエストが429になることを検証する。
func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		QueryRate:       rate.Limit(0.001), // 補充をほぼ止める
		QueryBurst:      2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler(http.StatusOK))

	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/presence/count", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		lastRec = httptest.NewRecorder()
		handler.ServeHTTP(lastRec, req)
	}

	if lastRec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", lastRec.Code, http.StatusTooManyRequests)
	}
	if lastRec.Header().Get("Retry-After") == "" {
		t.Error("429レスポンスにはRetry-Afterヘッダーを設定すべき")
	}
}

// TestRateLimiter_KeysClientsIndependently はクライアントごとに
// 独立したリミッターが使われることを検証する。
func TestRateLimiter_KeysClientsIndependently(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		QueryRate:       rate.Limit(0.001),
		QueryBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler(http.StatusOK))

	// クライアントAがバーストを使い切る
	reqA := httptest.NewRequest(http.MethodGet, "/api/presence/count", nil)
	reqA.RemoteAddr = "198.51.100.7:1234"
	handler.ServeHTTP(httptest.NewRecorder(), reqA)

	// クライアントBは影響を受けない
	reqB := httptest.NewRequest(http.MethodGet, "/api/presence/count", nil)
	reqB.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqB)

	if rec.Code != http.StatusOK {
		t.Errorf("別クライアントのstatus = %d, want %d", rec.Code, http.StatusOK)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

// TestRateLimiter_AuthenticatedKeyedByUserID は認証済みリクエストが
// IPではなくユーザーIDでキーされることを検証する。
func TestRateLimiter_AuthenticatedKeyedByUserID(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		QueryRate:       rate.Limit(0.001),
		QueryBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/presence/count", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))

	if got := rl.clientKey(req); got != "user:user-1" {
		t.Errorf("clientKey() = %q, want %q", got, "user:user-1")
	}

	anon := httptest.NewRequest(http.MethodGet, "/api/presence/count", nil)
	anon.RemoteAddr = "198.51.100.7:1234"
	if got := rl.clientKey(anon); got != "ip:198.51.100.7" {
		t.Errorf("clientKey() = %q, want %q", got, "ip:198.51.100.7")
	}
}

// TestNewRateLimiterConfig は分単位設定からの変換を検証する。
func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120)
	if cfg.QueryRate != rate.Limit(2) {
		t.Errorf("QueryRate = %v, want 2 req/sec", cfg.QueryRate)
	}
	if cfg.QueryBurst != 120 {
		t.Errorf("QueryBurst = %d, want 120", cfg.QueryBurst)
	}

	// 不正値はデフォルトに落ちる
	cfg = NewRateLimiterConfig(0)
	if cfg.QueryBurst != 120 {
		t.Errorf("QueryBurst = %d, want 120", cfg.QueryBurst)
	}
}
