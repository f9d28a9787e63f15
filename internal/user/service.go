// Package user はユーザー参照のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/repository"
)

// Service はユーザー参照のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Me はセッションのユーザーを返す。未ログインやユーザーが削除済みの場合はnil。
func (s *Service) Me(ctx context.Context, userID int64) (*model.User, error) {
	if userID == 0 {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// セッションは残っているがユーザーが存在しない
		slog.Warn("session user not found", slog.Int64("user_id", userID))
	}
	return user, nil
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// FindByUsername はユーザー名で検索する。usernameが未指定または該当なしの場合はnil。
func (s *Service) FindByUsername(ctx context.Context, username *string) (*model.User, error) {
	if username == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByUsername(ctx, *username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
