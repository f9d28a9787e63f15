package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultResetTokenPrefix はパスワード再設定トークンのキーの名前空間。
const DefaultResetTokenPrefix = "forget-password:"

// RedisResetTokenRepo はRedisを使用したパスワード再設定トークンのリポジトリ。
// 値にはユーザーIDを10進文字列で保存する。
type RedisResetTokenRepo struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisResetTokenRepo はRedisResetTokenRepoを生成する。
// prefixが空の場合はDefaultResetTokenPrefixを使用する。
func NewRedisResetTokenRepo(client redis.UniversalClient, prefix string) *RedisResetTokenRepo {
	if prefix == "" {
		prefix = DefaultResetTokenPrefix
	}
	return &RedisResetTokenRepo{redis: client, prefix: prefix}
}

func (r *RedisResetTokenRepo) key(token string) string {
	return r.prefix + token
}

// Save はトークンをttl付きで保存する。
func (r *RedisResetTokenRepo) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	if err := r.redis.Set(ctx, r.key(token), strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}
	return nil
}

// FindUserID はトークンに紐づくユーザーIDを返す。見つからない場合は0を返す。
func (r *RedisResetTokenRepo) FindUserID(ctx context.Context, token string) (int64, error) {
	value, err := r.redis.Get(ctx, r.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find reset token: %w", err)
	}
	return decodeUserID(value)
}

// Consume はGETDELでトークンを取り出して削除する。見つからない場合は0を返す。
func (r *RedisResetTokenRepo) Consume(ctx context.Context, token string) (int64, error) {
	value, err := r.redis.GetDel(ctx, r.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return decodeUserID(value)
}

func decodeUserID(value string) (int64, error) {
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to decode reset token value: %w", err)
	}
	return userID, nil
}

// compile-time interface check
var _ ResetTokenRepository = (*RedisResetTokenRepo)(nil)
