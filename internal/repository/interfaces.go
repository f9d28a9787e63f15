// Package repository はデータ永続化のインターフェースを定義する。
//
// ユーザーと投稿はPostgreSQLに、セッションとパスワード再設定トークンは
// TTL付きでRedisに保存する。
package repository

import (
	"context"
	"time"

	"github.com/TGlide/sawit-server/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名（大文字小文字を区別した完全一致）で検索する。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスで検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーをID昇順で返す。ページングは行わない。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	// ユーザー名またはメールアドレスの一意制約に違反した場合は
	// model.ErrDuplicateUsername / model.ErrDuplicateEmail を返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュのみを更新する。
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を作成者付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// ListPage は投稿を作成者とINNER JOINし、created_at降順・id降順で最大limit件取得する。
	// cursor.IDが0の場合はcreated_atがcursorより厳密に古い投稿のみを、
	// そうでなければ (created_at, id) が cursor より前の投稿を返す。
	ListPage(ctx context.Context, cursor model.Cursor, limit int) ([]*model.Post, error)

	// Create は投稿を作成し、採番されたIDとタイムスタンプをpostに設定する。
	Create(ctx context.Context, post *model.Post) error

	// UpdateTitle は投稿のタイトルを更新する。
	UpdateTitle(ctx context.Context, id int64, title string) error

	// Delete は投稿を削除する。削除された行があればtrueを返す。
	Delete(ctx context.Context, id int64) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Save はセッションをttl付きで保存する。既存のセッションは上書きされる。
	Save(ctx context.Context, session *model.Session, ttl time.Duration) error

	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}

// ResetTokenRepository はパスワード再設定トークンの永続化インターフェース。
type ResetTokenRepository interface {
	// Save はトークンとユーザーIDの対応をttl付きで保存する。
	Save(ctx context.Context, token string, userID int64, ttl time.Duration) error

	// FindUserID はトークンに紐づくユーザーIDを返す。
	// トークンが存在しないか期限切れの場合は0を返す。
	FindUserID(ctx context.Context, token string) (int64, error)

	// Consume はトークンを取得と同時に削除し、紐づくユーザーIDを返す。
	// 同じトークンを並行して消費しても、ユーザーIDを受け取れるのは1回だけ。
	// トークンが存在しないか期限切れの場合は0を返す。
	Consume(ctx context.Context, token string) (int64, error)
}
