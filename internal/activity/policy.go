// Package activity はアクティビティの記録とオンライン判定のコアロジックを提供する。
package activity

import "time"

// IsOnline はlastActivityがnowからthreshold以内であればtrueを返す。
// 境界は閾値ちょうどを含む（now - lastActivity == threshold はオンライン）。
func IsOnline(lastActivity, now time.Time, threshold time.Duration) bool {
	return ActiveWithin(lastActivity, now, threshold)
}

// ActiveWithin はlastActivityがnowからwindow以内であればtrueを返す。
// 任意の期間に対するオンライン判定の一般形。未来のタイムスタンプもtrueとなる
// （時計のずれを許容し、アクティビティを見逃さない方に倒す）。
func ActiveWithin(lastActivity, now time.Time, window time.Duration) bool {
	return now.Sub(lastActivity) <= window
}
