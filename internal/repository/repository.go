package repository

import (
	"context"
	"errors"
	"time"

	"groupchat/internal/model"
)

var (
	// ErrNotFound 请求的记录不存在
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 写入违反唯一约束（派生 id 已被占用、用户名已注册）
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// GroupRepository 群组、成员与消息的存储。实现方需保证 Create 是比较后写入的原子操作。
type GroupRepository interface {
	// Create 写入新群组及其初始成员；id 已存在时返回 ErrDuplicateEntry
	Create(ctx context.Context, group *model.Group) error
	// FindByID 返回群组及其成员集合；不存在时返回 ErrNotFound
	FindByID(ctx context.Context, id string) (*model.Group, error)
	// List 返回全部群组
	List(ctx context.Context) ([]model.Group, error)
	// AddMember 设置成员标记，重复添加幂等
	AddMember(ctx context.Context, groupID, username string) error
	// AppendMessage 以生成键追加消息，返回生成的键
	AppendMessage(ctx context.Context, groupID string, msg *model.Message) (string, error)
	// ListMessages 返回群组消息，since 非零时只返回其后的消息；顺序不作保证
	ListMessages(ctx context.Context, groupID string, since time.Time) ([]model.Message, error)
}

// TokenRepository 记录每个用户当前有效的 access token 与 refresh token 的 jti
type TokenRepository interface {
	AddUserToken(ctx context.Context, username, token string, ttl time.Duration) error
	GetUserToken(ctx context.Context, username string) (string, error)
	ExtendUserToken(ctx context.Context, username string, ttl time.Duration) error
	AddRefreshID(ctx context.Context, username, jti string, ttl time.Duration) error
	GetRefreshID(ctx context.Context, username string) (string, error)
	// DeleteUserToken 同时清除 access token 与 refresh jti
	DeleteUserToken(ctx context.Context, username string) error
}

// UserRepository 用户账户
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Exists(ctx context.Context, username string) (bool, error)
}
