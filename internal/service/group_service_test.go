package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"groupchat/internal/model"
	"groupchat/internal/repository"
	"groupchat/internal/repository/mocks"
	"groupchat/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type recordingPublisher struct {
	events []service.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e service.Event) error {
	p.events = append(p.events, e)
	return nil
}

type recordingNotifier struct {
	invited []string
}

func (n *recordingNotifier) NotifyInvite(_ context.Context, username string, _ *model.Group, _ string) error {
	n.invited = append(n.invited, username)
	return nil
}

type fixture struct {
	groups    *mocks.GroupRepository
	users     *mocks.UserRepository
	publisher *recordingPublisher
	notifier  *recordingNotifier
	svc       *service.GroupService
}

func newFixture() *fixture {
	f := &fixture{
		groups:    new(mocks.GroupRepository),
		users:     new(mocks.UserRepository),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	f.svc = service.NewGroupService(f.groups, f.users, f.publisher, f.notifier, quietLogger())
	return f
}

func teamGroup() *model.Group {
	return &model.Group{
		ID:      "g1",
		Name:    "Team",
		Creator: "alice",
		Privacy: model.PrivacyPrivate,
		Members: map[string]bool{"alice": true, "bob": true},
	}
}

func TestGroupService_CreateGroup_TwiceRejectsSecond(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sum := sha256.Sum256([]byte("my team"))
	wantID := hex.EncodeToString(sum[:])[:16]

	f.groups.On("FindByID", ctx, wantID).Return(nil, repository.ErrNotFound).Once()
	f.users.On("Exists", ctx, "bob").Return(true, nil).Once()
	f.users.On("Exists", ctx, "ghost").Return(false, nil).Once()
	f.groups.On("Create", ctx, mock.MatchedBy(func(g *model.Group) bool {
		return g.ID == wantID &&
			g.Name == "My Team" &&
			g.Creator == "alice" &&
			g.Privacy == model.PrivacyPrivate &&
			assert.ObjectsAreEqual(map[string]bool{"alice": true, "bob": true}, g.Members)
	})).Return(nil).Once()

	res, err := f.svc.CreateGroup(ctx, service.CreateGroupInput{
		Name:    " My  Team ",
		Members: "bob, alice, ghost,, bob",
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, wantID, res.Group.ID)
	assert.Equal(t, []string{"ghost"}, res.Skipped)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, service.EventGroupCreated, f.publisher.events[0].Type)

	// 第二次创建：同一派生 id 已存在
	f.groups.On("FindByID", ctx, wantID).Return(res.Group, nil).Once()
	_, err = f.svc.CreateGroup(ctx, service.CreateGroupInput{Name: " My  Team "}, "alice")
	require.ErrorIs(t, err, service.ErrGroupExists)
	assert.Equal(t, "Group already exists", err.Error())

	f.groups.AssertExpectations(t)
	f.groups.AssertNumberOfCalls(t, "Create", 1)
	f.users.AssertExpectations(t)
}

func TestGroupService_CreateGroup_LosesRace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.groups.On("FindByID", ctx, mock.Anything).Return(nil, repository.ErrNotFound).Once()
	f.groups.On("Create", ctx, mock.AnythingOfType("*model.Group")).Return(repository.ErrDuplicateEntry).Once()

	_, err := f.svc.CreateGroup(ctx, service.CreateGroupInput{Name: "Team"}, "alice")
	require.ErrorIs(t, err, service.ErrGroupExists)
	assert.Empty(t, f.publisher.events)
}

func TestGroupService_CreateGroup_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateGroup(ctx, service.CreateGroupInput{Name: "   "}, "alice")
	require.ErrorIs(t, err, service.ErrGroupNameRequired)
	assert.True(t, service.IsValidation(err))

	_, err = f.svc.CreateGroup(ctx, service.CreateGroupInput{Name: "Team", Privacy: "secret"}, "alice")
	require.ErrorIs(t, err, service.ErrInvalidPrivacy)

	f.groups.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.groups.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGroupService_EnterGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("creator can invite", func(t *testing.T) {
		f := newFixture()
		f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)

		view, err := f.svc.EnterGroup(ctx, "g1", "alice")
		require.NoError(t, err)
		assert.True(t, view.CanInvite)
	})

	t.Run("member cannot invite", func(t *testing.T) {
		f := newFixture()
		f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)

		view, err := f.svc.EnterGroup(ctx, "g1", "bob")
		require.NoError(t, err)
		assert.False(t, view.CanInvite)
	})

	t.Run("non member denied", func(t *testing.T) {
		f := newFixture()
		f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)

		view, err := f.svc.EnterGroup(ctx, "g1", "mallory")
		require.ErrorIs(t, err, service.ErrAccessDenied)
		assert.Nil(t, view)
	})

	t.Run("missing group denied", func(t *testing.T) {
		f := newFixture()
		f.groups.On("FindByID", ctx, "nope").Return(nil, repository.ErrNotFound)

		_, err := f.svc.EnterGroup(ctx, "nope", "alice")
		require.ErrorIs(t, err, service.ErrAccessDenied)
	})

	t.Run("store failure is not a denial", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("boom")
		f.groups.On("FindByID", ctx, "g1").Return(nil, boom)

		_, err := f.svc.EnterGroup(ctx, "g1", "alice")
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, service.ErrAccessDenied)
	})
}

func TestGroupService_Invite_NonCreatorRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("Exists", ctx, "carol").Return(true, nil).Once()
	f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil).Once()

	err := f.svc.Invite(ctx, "g1", "bob", "carol")
	require.ErrorIs(t, err, service.ErrNotCreator)
	assert.ErrorIs(t, err, service.ErrAccessDenied)
	assert.Equal(t, "Only the creator can invite users", err.Error())

	f.groups.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.invited)
}

func TestGroupService_Invite_UnknownUserRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("Exists", ctx, "ghost").Return(false, nil).Once()

	err := f.svc.Invite(ctx, "g1", "alice", "ghost")
	require.ErrorIs(t, err, service.ErrUserNotFound)

	f.groups.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.groups.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestGroupService_Invite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("Exists", ctx, "carol").Return(true, nil).Once()
	f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil).Once()
	f.groups.On("AddMember", ctx, "g1", "carol").Return(nil).Once()

	require.NoError(t, f.svc.Invite(ctx, "g1", "alice", "  carol "))
	assert.Equal(t, []string{"carol"}, f.notifier.invited)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "carol", f.publisher.events[0].Subject)
	f.groups.AssertExpectations(t)

	require.ErrorIs(t, f.svc.Invite(ctx, "g1", "alice", " "), service.ErrUsernameRequired)
}

func TestGroupService_Invite_MissingGroup(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("Exists", ctx, "carol").Return(true, nil).Once()
	f.groups.On("FindByID", ctx, "nope").Return(nil, repository.ErrNotFound).Once()

	err := f.svc.Invite(ctx, "nope", "alice", "carol")
	require.ErrorIs(t, err, service.ErrGroupNotFound)
}

func TestGroupService_ListMessages_SortedByCreatedAt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)
	f.groups.On("ListMessages", ctx, "g1", time.Time{}).Return([]model.Message{
		{Key: "3", Author: "bob", Text: "third", CreatedAt: at.Add(2 * time.Second)},
		{Key: "1", Author: "alice", Text: "first", CreatedAt: at},
		{Key: "2", Author: "bob", Text: "second", CreatedAt: at.Add(time.Second)},
	}, nil)

	messages, err := f.svc.ListMessages(ctx, "g1", "bob", time.Time{})
	require.NoError(t, err)
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "second", "third"}, texts)
}

func TestGroupService_ListMessages_NonMember(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)

	_, err := f.svc.ListMessages(ctx, "g1", "mallory", time.Time{})
	require.ErrorIs(t, err, service.ErrAccessDenied)
	f.groups.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestGroupService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.SendMessage(ctx, "g1", "alice", "  \n ")
		require.ErrorIs(t, err, service.ErrMessageEmpty)
		f.groups.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("non member", func(t *testing.T) {
		f := newFixture()
		f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)

		_, err := f.svc.SendMessage(ctx, "g1", "mallory", "hi")
		require.ErrorIs(t, err, service.ErrAccessDenied)
		f.groups.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("member", func(t *testing.T) {
		f := newFixture()
		f.groups.On("FindByID", ctx, "g1").Return(teamGroup(), nil)
		f.groups.On("AppendMessage", ctx, "g1", mock.MatchedBy(func(m *model.Message) bool {
			return m.Author == "bob" && m.Text == "hello" && !m.CreatedAt.IsZero()
		})).Return("k1", nil).Once()

		msg, err := f.svc.SendMessage(ctx, "g1", "bob", " hello ")
		require.NoError(t, err)
		assert.Equal(t, "k1", msg.Key)
		require.Len(t, f.publisher.events, 1)
		assert.Equal(t, service.EventMessageSent, f.publisher.events[0].Type)
	})
}

func TestGroupService_ListGroups_OnlyMemberOf(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.groups.On("List", ctx).Return([]model.Group{
		{ID: "3", Name: "Zeta", Creator: "bob", Members: map[string]bool{"bob": true, "alice": true}},
		{ID: "2", Name: "Other", Creator: "carol", Members: map[string]bool{"carol": true}},
		{ID: "1", Name: "Alpha", Creator: "alice", Members: map[string]bool{"alice": true}},
	}, nil)

	groups, err := f.svc.ListGroups(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Alpha", groups[0].Name)
	assert.Equal(t, "Zeta", groups[1].Name)
}
