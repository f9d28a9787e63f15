package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TGlide/sawit-server/internal/model"
)

// postSelect は投稿と作成者をINNER JOINで取得するベースクエリ。
// 作成者が存在しない投稿は結果から除外される。
const postSelect = `
	SELECT p.id, p.title, p.text, p.points, p.creator_id, p.created_at, p.updated_at,
	       u.id, u.username, u.email, u.created_at, u.updated_at
	FROM posts p
	INNER JOIN users u ON u.id = p.creator_id`

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPostWithCreator(s rowScanner) (*model.Post, error) {
	post := &model.Post{Creator: &model.User{}}
	err := s.Scan(
		&post.ID, &post.Title, &post.Text, &post.Points, &post.CreatorID, &post.CreatedAt, &post.UpdatedAt,
		&post.Creator.ID, &post.Creator.Username, &post.Creator.Email, &post.Creator.CreatedAt, &post.Creator.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// FindByID は指定IDの投稿を作成者付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post, err := scanPostWithCreator(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return post, nil
}

// ListPage は投稿一覧をキーセットページネーションで取得する。
// 同一時刻の投稿でも順序が一意になるよう、idを第2ソートキーにする。
// created_atはミリ秒精度で保存しているため、カーソルの時刻と正確に比較できる。
func (r *PostgresPostRepo) ListPage(ctx context.Context, cursor model.Cursor, limit int) ([]*model.Post, error) {
	query := postSelect
	args := []interface{}{}
	argIndex := 1

	switch {
	case cursor.IsZero():
	case cursor.ID == 0:
		query += fmt.Sprintf(" WHERE p.created_at < $%d", argIndex)
		args = append(args, cursor.CreatedAt)
		argIndex++
	default:
		query += fmt.Sprintf(" WHERE (p.created_at, p.id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPostWithCreator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, text, creator_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, points, created_at, updated_at`,
		post.Title, post.Text, post.CreatorID,
	).Scan(&post.ID, &post.Points, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// UpdateTitle は投稿のタイトルを更新する。
func (r *PostgresPostRepo) UpdateTitle(ctx context.Context, id int64, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = $2, updated_at = now() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("failed to update post title: %w", err)
	}
	return nil
}

// Delete は投稿を削除し、削除された行があったかを返す。
func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
