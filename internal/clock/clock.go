// Package clock は現在時刻の供給を抽象化する。
// オンライン判定やキャッシュTTLなど時刻に依存するロジックに注入し、
// テストではFakeに差し替えてsleepなしで決定的に検証できるようにする。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// systemClock はtime.Nowを使う本番用実装。
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System はシステム時刻を返すClockを返す。
func System() Clock {
	return systemClock{}
}

// Fake はテスト用の固定時刻Clock。
// SetとAdvanceで時刻を操作できる。ゴルーチン間で共有しても安全。
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻のFakeを生成する。
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now は設定された現在時刻を返す。
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set は現在時刻を設定する。
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Advance は現在時刻をdだけ進める。
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
