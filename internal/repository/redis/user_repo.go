package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groupchat/internal/repository"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRedisUnavailable = errors.New("redis unavailable")
	ErrExtendFailed     = errors.New("token extend failed")
	ErrTokenDeleted     = errors.New("token delete failed")
)

const (
	UserTokenPrefix    = "login:user:token"
	RefreshTokenPrefix = "login:user:refresh"
)

// TokenRepository 用户当前登录 token，每个用户只保留一份
type TokenRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewTokenRepository(rdb *redis.Client, prefix string) *TokenRepository {
	return &TokenRepository{rdb: rdb, prefix: prefix}
}

func (r *TokenRepository) key(username string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, UserTokenPrefix, username)
}

func (r *TokenRepository) refreshKey(username string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, RefreshTokenPrefix, username)
}

func (r *TokenRepository) AddUserToken(ctx context.Context, username, token string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.key(username), token, ttl).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *TokenRepository) GetUserToken(ctx context.Context, username string) (string, error) {
	token, err := r.rdb.Get(ctx, r.key(username)).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return token, nil
}

func (r *TokenRepository) ExtendUserToken(ctx context.Context, username string, ttl time.Duration) error {
	if err := r.rdb.Expire(ctx, r.key(username), ttl).Err(); err != nil {
		return ErrExtendFailed
	}
	return nil
}

func (r *TokenRepository) AddRefreshID(ctx context.Context, username, jti string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.refreshKey(username), jti, ttl).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *TokenRepository) GetRefreshID(ctx context.Context, username string) (string, error) {
	jti, err := r.rdb.Get(ctx, r.refreshKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return jti, nil
}

func (r *TokenRepository) DeleteUserToken(ctx context.Context, username string) error {
	if err := r.rdb.Del(ctx, r.key(username), r.refreshKey(username)).Err(); err != nil {
		return ErrTokenDeleted
	}
	return nil
}
