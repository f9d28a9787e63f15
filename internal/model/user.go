// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Passwordには常にハッシュ値が入り、平文を保持することはない。
type User struct {
	ID        int64
	Username  string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はリクエストに紐づくサーバー側セッションの保存データを表す。
// UserIDが0の場合は未認証（Anonymous）を意味する。
type Session struct {
	ID     string `json:"-"`
	UserID int64  `json:"userId,omitempty"`
}

// Authenticated はセッションがユーザーに紐付いているかを返す。
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}
