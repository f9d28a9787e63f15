package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/TGlide/sawit-server/internal/model"
)

// 入力検証のエラーメッセージ。
const (
	msgTooShort           = "length must be greater than 2"
	msgUsernameHasAt      = "cannot include '@'"
	msgUsernameTaken      = "username already exists"
	msgEmailTaken         = "email already exists"
	msgInvalidEmail       = "invalid email"
	msgUserNotExist       = "the user does not exist"
	msgWrongPassword      = "wrong password"
	msgTokenExpired       = "token expired"
	msgUserNoLongerExists = "user no longer exists"
)

// minCredentialLength を超える長さ（文字数）が必要。
const minCredentialLength = 2

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UsernameFinder はユーザー名の重複確認に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UsernameFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// ValidateRegister は登録入力を検証し、全てのフィールドエラーを順番に返す。
// 検証順: ユーザー名の長さ、'@'の有無、ユーザー名の重複、メール形式、パスワードの長さ。
// エラーはストアの参照に失敗した場合のみ返す。
func ValidateRegister(ctx context.Context, users UsernameFinder, input RegisterInput) ([]model.FieldError, error) {
	var errs []model.FieldError

	if utf8.RuneCountInString(input.Username) <= minCredentialLength {
		errs = append(errs, model.FieldError{Field: "username", Message: msgTooShort})
	}

	if strings.Contains(input.Username, "@") {
		errs = append(errs, model.FieldError{Field: "username", Message: msgUsernameHasAt})
	}

	existing, err := users.FindByUsername(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		errs = append(errs, model.FieldError{Field: "username", Message: msgUsernameTaken})
	}

	if !IsEmail(input.Email) {
		errs = append(errs, model.FieldError{Field: "email", Message: msgInvalidEmail})
	}

	if utf8.RuneCountInString(input.Password) <= minCredentialLength {
		errs = append(errs, model.FieldError{Field: "password", Message: msgTooShort})
	}

	return errs, nil
}

// IsEmail は文字列が単一のメールアドレス（表示名なし）として妥当かを返す。
// ドメイン部にはドットを含むことを要求する。
func IsEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}

	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
