package model

import "time"

// Session は認証済みユーザーのログインセッションを表す。
// 匿名訪問者にはセッション行は作られず、Cookie上のセッションIDのみが使われる。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
