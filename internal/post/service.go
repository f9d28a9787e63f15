// Package post は投稿の一覧取得と作成・更新・削除を提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TGlide/sawit-server/internal/metrics"
	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/repository"
	"github.com/TGlide/sawit-server/internal/security"
)

// MaxPageSize は1ページで返す投稿の最大件数。
const MaxPageSize = 50

// CreateInput は投稿作成の入力。
type CreateInput struct {
	Title string
	Text  string
}

// Service は投稿のサービス層。
type Service struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	posts repository.PostRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		posts:     posts,
		users:     users,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// clampLimit はlimitを[1, MaxPageSize]に収める。
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// ListPosts は投稿を新しい順に最大limit件返す。
// cursorはエポックミリ秒の文字列で、指定時はそれより厳密に古い投稿のみを返す。
// NextCursorが返す "<ミリ秒>:<id>" 形式の場合は同一時刻の投稿もidで続きから返す。
// limit+1件を取得してHasMoreを判定する。
func (s *Service) ListPosts(ctx context.Context, limit int, cursor string) (*model.PostPage, error) {
	var before model.Cursor
	if cursor != "" {
		var err error
		before, err = model.ParseCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	realLimit := clampLimit(limit)
	posts, err := s.posts.ListPage(ctx, before, realLimit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	hasMore := len(posts) > realLimit
	if hasMore {
		posts = posts[:realLimit]
	}

	return &model.PostPage{Posts: posts, HasMore: hasMore}, nil
}

// GetPost は投稿を作成者付きで返す。存在しない場合はnil。
func (s *Service) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// CreatePost はログイン中のユーザーを作成者として投稿を作成する。
// タイトルと本文はHTMLタグを除去してから保存する。
func (s *Service) CreatePost(ctx context.Context, userID int64, input CreateInput) (*model.Post, error) {
	if userID == 0 {
		return nil, model.ErrNotAuthenticated
	}

	creator, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find creator: %w", err)
	}
	if creator == nil {
		return nil, model.NewUserNotFoundError()
	}

	post := &model.Post{
		Title:     s.sanitizer.Sanitize(input.Title),
		Text:      s.sanitizer.Sanitize(input.Text),
		CreatorID: creator.ID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.Creator = creator

	s.metrics.RecordPostCreated()
	slog.Info("post created",
		slog.Int64("post_id", post.ID),
		slog.Int64("user_id", creator.ID),
	)
	return post, nil
}

// UpdatePost はタイトルが指定されていれば更新し、更新後の投稿を返す。
// 投稿が存在しない場合はnilを返す。
func (s *Service) UpdatePost(ctx context.Context, id int64, title *string) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, nil
	}
	if title == nil {
		return post, nil
	}

	if err := s.posts.UpdateTitle(ctx, id, s.sanitizer.Sanitize(*title)); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	updated, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload post: %w", err)
	}
	return updated, nil
}

// DeletePost は投稿を削除する。削除した場合のみtrueを返す。
// ストアのエラーはログに残してfalseを返す。
func (s *Service) DeletePost(ctx context.Context, id int64) bool {
	deleted, err := s.posts.Delete(ctx, id)
	if err != nil {
		slog.Error("failed to delete post",
			slog.Int64("post_id", id),
			slog.String("error", err.Error()),
		)
		return false
	}
	if deleted {
		slog.Info("post deleted", slog.Int64("post_id", id))
	}
	return deleted
}
