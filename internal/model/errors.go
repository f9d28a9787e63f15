// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// FieldError は入力フィールド単位のバリデーションエラーを表す。
// トランスポート層のエラーではなく、レスポンス内に含めて返す。
type FieldError struct {
	Field   string
	Message string
}

// APIError は統一エラーフォーマットを表す。
// フィールドに紐付かない利用者向けエラー（認可失敗、不正なカーソル等）に使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
}

// Error はerrorインターフェースを実装する。
// GraphQLのエラーメッセージとしてそのまま利用者に返るため、コードは含めない。
func (e *APIError) Error() string {
	return e.Message
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeInvalidCursor    = "INVALID_CURSOR"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// ErrNotAuthenticated は保護された操作をセッションなしで呼び出した場合のエラー。
var ErrNotAuthenticated = &APIError{
	Code:     ErrCodeNotAuthenticated,
	Message:  "not authenticated",
	Category: "auth",
}

// リポジトリ層が一意制約違反を識別するためのエラー。
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// NewInvalidCursorError は無効なカーソルエラーを生成する。
func NewInvalidCursorError(cursor string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCursor,
		Message:  fmt.Sprintf("invalid cursor: %q", cursor),
		Category: "validation",
	}
}

// NewUserNotFoundError はセッションのユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "user not found",
		Category: "auth",
	}
}

// NewInternalError は詳細を隠した内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal error",
		Category: "system",
	}
}

// NewSessionUnavailableError はセッションストアに到達できない場合のエラーを生成する。
func NewSessionUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUnavailable,
		Message:  "session store unavailable",
		Category: "system",
	}
}
