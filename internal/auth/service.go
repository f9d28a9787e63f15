// Package auth はユーザー登録・ログイン・パスワード再設定の認証フローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/TGlide/sawit-server/internal/mailer"
	"github.com/TGlide/sawit-server/internal/metrics"
	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/password"
	"github.com/TGlide/sawit-server/internal/repository"
)

// DefaultResetTokenTTL はパスワード再設定トークンの既定の有効期間（3日）。
const DefaultResetTokenTTL = 72 * time.Hour

// SessionHandle はリクエストに紐づくセッションの操作。
// *session.Session が満たす。
type SessionHandle interface {
	UserID() int64
	SetUserID(ctx context.Context, userID int64) error
	Destroy(ctx context.Context) error
}

// UserResponse は登録・ログイン・パスワード変更の結果。
// 成功時はUser、入力エラー時はErrorsのどちらか一方が設定される。
type UserResponse struct {
	User   *model.User
	Errors []model.FieldError
}

func fieldErrors(errs ...model.FieldError) *UserResponse {
	return &UserResponse{Errors: errs}
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	FrontendURL   string        // パスワード再設定リンクのベースURL
	ResetTokenTTL time.Duration // 再設定トークンの有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users   repository.UserRepository
	tokens  repository.ResetTokenRepository
	hasher  password.Hasher
	mailer  mailer.Mailer
	metrics metrics.MetricsCollector
	config  ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	tokens repository.ResetTokenRepository,
	hasher password.Hasher,
	m mailer.Mailer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = DefaultResetTokenTTL
	}
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		mailer:  m,
		metrics: collector,
		config:  config,
	}
}

// Register は入力を検証してユーザーを作成し、セッションにログインさせる。
// 検証エラーがある場合はユーザーを作成せずErrorsを返す。
func (s *Service) Register(ctx context.Context, sess SessionHandle, input RegisterInput) (*UserResponse, error) {
	errs, err := ValidateRegister(ctx, s.users, input)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return fieldErrors(errs...), nil
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username: input.Username,
		Email:    input.Email,
		Password: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 重複確認の後に同名ユーザーが作成された場合
		switch {
		case errors.Is(err, model.ErrDuplicateUsername):
			return fieldErrors(model.FieldError{Field: "username", Message: msgUsernameTaken}), nil
		case errors.Is(err, model.ErrDuplicateEmail):
			return fieldErrors(model.FieldError{Field: "email", Message: msgEmailTaken}), nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := sess.SetUserID(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.metrics.RecordRegister()
	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return &UserResponse{User: user}, nil
}

// Login はユーザー名またはメールアドレスとパスワードで認証し、セッションにログインさせる。
// 入力がメールアドレス形式ならメールアドレスで、そうでなければユーザー名で検索する。
func (s *Service) Login(ctx context.Context, sess SessionHandle, usernameOrEmail, plaintext string) (*UserResponse, error) {
	var (
		user *model.User
		err  error
	)
	if IsEmail(usernameOrEmail) {
		user, err = s.users.FindByEmail(ctx, usernameOrEmail)
	} else {
		user, err = s.users.FindByUsername(ctx, usernameOrEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		s.metrics.RecordLogin(false)
		return fieldErrors(model.FieldError{Field: "usernameOrEmail", Message: msgUserNotExist}), nil
	}

	if !s.hasher.Verify(plaintext, user.Password) {
		s.metrics.RecordLogin(false)
		slog.Warn("login failed", slog.Int64("user_id", user.ID))
		return fieldErrors(model.FieldError{Field: "password", Message: msgWrongPassword}), nil
	}

	if err := sess.SetUserID(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return &UserResponse{User: user}, nil
}

// Logout はセッションを破棄する。破棄に失敗した場合はログに残してfalseを返す。
func (s *Service) Logout(ctx context.Context, sess SessionHandle) bool {
	userID := sess.UserID()
	if err := sess.Destroy(ctx); err != nil {
		slog.Error("failed to destroy session",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	slog.Info("user logged out", slog.Int64("user_id", userID))
	return true
}

// ForgotPassword はパスワード再設定トークンを発行し、再設定リンクをメールで送る。
// アドレスの登録有無を推測されないよう、該当ユーザーがいなくてもtrueを返す。
// メール送信は失敗してもログとメトリクスに記録するだけでtrueを返す。
func (s *Service) ForgotPassword(ctx context.Context, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return true, nil
	}

	token := uuid.NewString()
	if err := s.tokens.Save(ctx, token, user.ID, s.config.ResetTokenTTL); err != nil {
		return false, fmt.Errorf("failed to save reset token: %w", err)
	}
	s.metrics.RecordPasswordResetRequested()

	if err := s.mailer.Send(ctx, user.Email, "Reset your password", s.resetMailBody(token)); err != nil {
		s.metrics.RecordMailFailure()
		slog.Error("failed to send password reset mail",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	slog.Info("password reset requested", slog.Int64("user_id", user.ID))
	return true, nil
}

// ResetLink はトークンに対応するフロントエンドの再設定ページのURLを返す。
func (s *Service) ResetLink(token string) string {
	return s.config.FrontendURL + "/change-password/" + token
}

func (s *Service) resetMailBody(token string) string {
	return fmt.Sprintf(`<a href="%s">reset password</a>`, html.EscapeString(s.ResetLink(token)))
}

// ChangePassword は再設定トークンを検証してパスワードを更新し、セッションにログインさせる。
// 新しいパスワードが短い場合はトークンを消費せず、トークンの有効性と合わせてまとめて返す。
// トークンは取得と同時に削除するため、並行するリクエストでも1回しか使えない。
func (s *Service) ChangePassword(ctx context.Context, sess SessionHandle, token, newPassword string) (*UserResponse, error) {
	if utf8.RuneCountInString(newPassword) <= minCredentialLength {
		errs := []model.FieldError{{Field: "newPassword", Message: msgTooShort}}
		userID, err := s.tokens.FindUserID(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to find reset token: %w", err)
		}
		if userID == 0 {
			errs = append(errs, model.FieldError{Field: "token", Message: msgTokenExpired})
		}
		return fieldErrors(errs...), nil
	}

	userID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	if userID == 0 {
		return fieldErrors(model.FieldError{Field: "token", Message: msgTokenExpired}), nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return fieldErrors(model.FieldError{Field: "token", Message: msgUserNoLongerExists}), nil
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	user.Password = hash

	if err := sess.SetUserID(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	slog.Info("password changed", slog.Int64("user_id", user.ID))
	return &UserResponse{User: user}, nil
}
