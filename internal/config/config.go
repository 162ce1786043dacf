package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Presence
	OnlineThreshold time.Duration // この時間内のアクティビティを「オンライン」とみなす

	// Cleanup
	CleanupAfterDays int // 0で無効

	// Coalescing cache
	CacheEnabled   bool
	CacheTTL       time.Duration
	CacheKeyPrefix string

	// Tracking
	TrackAnonymous bool
	IgnoredRoutes  []string // ワイルドカード（*）対応のパスパターン

	// Rate Limit
	RateLimitQuery int // 照会API req/min/クライアント

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// デフォルトの追跡除外パターン。
// ヘルスチェック・メトリクス・照会API自身のポーリングを記録しない。
var defaultIgnoredRoutes = []string{"/health", "/metrics", "/api/*"}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	thresholdMin := getEnvInt("ONLINE_THRESHOLD_MINUTES", 5)
	if thresholdMin < 1 {
		return nil, fmt.Errorf("ONLINE_THRESHOLD_MINUTES must be >= 1, got %d", thresholdMin)
	}
	cfg.OnlineThreshold = time.Duration(thresholdMin) * time.Minute

	cfg.CleanupAfterDays = getEnvInt("CLEANUP_AFTER_DAYS", 30)
	if cfg.CleanupAfterDays < 0 {
		return nil, fmt.Errorf("CLEANUP_AFTER_DAYS must be >= 0, got %d", cfg.CleanupAfterDays)
	}

	cfg.CacheEnabled = getEnvBool("CACHE_ENABLED", true)
	ttlSec := getEnvInt("CACHE_TTL_SECONDS", 60)
	if ttlSec < 1 {
		return nil, fmt.Errorf("CACHE_TTL_SECONDS must be >= 1, got %d", ttlSec)
	}
	cfg.CacheTTL = time.Duration(ttlSec) * time.Second
	cfg.CacheKeyPrefix = getEnvString("CACHE_KEY_PREFIX", "lastseen")

	cfg.TrackAnonymous = getEnvBool("TRACK_ANONYMOUS", false)
	cfg.IgnoredRoutes = getEnvList("IGNORED_ROUTES", defaultIgnoredRoutes)

	cfg.RateLimitQuery = getEnvInt("RATE_LIMIT_QUERY", 120)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	baseURL := os.Getenv("BASE_URL")
	cfg.CookieSecure = strings.HasPrefix(baseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
