package mocks

import (
	"context"
	"time"

	"groupchat/internal/model"

	"github.com/stretchr/testify/mock"
)

// GroupRepository 手写的 repository.GroupRepository mock
type GroupRepository struct {
	mock.Mock
}

func (m *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *GroupRepository) FindByID(ctx context.Context, id string) (*model.Group, error) {
	args := m.Called(ctx, id)
	if g := args.Get(0); g != nil {
		return g.(*model.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GroupRepository) List(ctx context.Context) ([]model.Group, error) {
	args := m.Called(ctx)
	if gs := args.Get(0); gs != nil {
		return gs.([]model.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GroupRepository) AddMember(ctx context.Context, groupID, username string) error {
	args := m.Called(ctx, groupID, username)
	return args.Error(0)
}

func (m *GroupRepository) AppendMessage(ctx context.Context, groupID string, msg *model.Message) (string, error) {
	args := m.Called(ctx, groupID, msg)
	return args.String(0), args.Error(1)
}

func (m *GroupRepository) ListMessages(ctx context.Context, groupID string, since time.Time) ([]model.Message, error) {
	args := m.Called(ctx, groupID, since)
	if ms := args.Get(0); ms != nil {
		return ms.([]model.Message), args.Error(1)
	}
	return nil, args.Error(1)
}
