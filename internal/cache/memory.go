package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/lastseen/internal/clock"
)

// Memory はプロセス内のSuppressionCache実装。
// キーごとの有効期限をマップで保持し、バックグラウンドで期限切れエントリを
// 定期的に掃除する。時刻はClock経由で取得するためテストで決定的に検証できる。
type Memory struct {
	clk clock.Clock

	mu      sync.Mutex
	expires map[string]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// janitorInterval は期限切れエントリの掃除間隔。
const janitorInterval = 5 * time.Minute

// NewMemory は新しいMemoryキャッシュを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
// 不要になったらStopを呼び出すこと。
func NewMemory(clk clock.Clock) *Memory {
	m := &Memory{
		clk:     clk,
		expires: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}

	go m.janitorLoop()

	return m
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (m *Memory) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// ShouldSuppress はキーの有効期限が切れていない場合にtrueを返す。
// 期限切れのエントリはその場で削除する。
func (m *Memory) ShouldSuppress(ctx context.Context, key string) (bool, error) {
	now := m.clk.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.expires[key]
	if !ok {
		return false, nil
	}
	if now.After(exp) {
		delete(m.expires, key)
		return false, nil
	}
	return true, nil
}

// MarkWritten はキーの有効期限を今からttl後に設定する。
// 既存エントリがある場合もウィンドウをリセットする。
func (m *Memory) MarkWritten(ctx context.Context, key string, ttl time.Duration) error {
	exp := m.clk.Now().Add(ttl)

	m.mu.Lock()
	m.expires[key] = exp
	m.mu.Unlock()

	return nil
}

// Len は現在保持しているエントリ数を返す。テストおよびメトリクス用。
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}

// janitorLoop はバックグラウンドで期限切れエントリを定期的に削除する。
func (m *Memory) janitorLoop() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCh:
			return
		}
	}
}

// removeExpired は期限切れの全エントリを削除する。
func (m *Memory) removeExpired() {
	now := m.clk.Now()

	m.mu.Lock()
	for key, exp := range m.expires {
		if now.After(exp) {
			delete(m.expires, key)
		}
	}
	m.mu.Unlock()
}

var _ SuppressionCache = (*Memory)(nil)
