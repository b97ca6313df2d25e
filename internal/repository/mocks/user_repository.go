package mocks

import (
	"context"
	"time"

	"groupchat/internal/model"

	"github.com/stretchr/testify/mock"
)

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) AddUserToken(ctx context.Context, username, token string, ttl time.Duration) error {
	args := m.Called(ctx, username, token, ttl)
	return args.Error(0)
}

func (m *TokenRepository) GetUserToken(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *TokenRepository) ExtendUserToken(ctx context.Context, username string, ttl time.Duration) error {
	args := m.Called(ctx, username, ttl)
	return args.Error(0)
}

func (m *TokenRepository) AddRefreshID(ctx context.Context, username, jti string, ttl time.Duration) error {
	args := m.Called(ctx, username, jti, ttl)
	return args.Error(0)
}

func (m *TokenRepository) GetRefreshID(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *TokenRepository) DeleteUserToken(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}
