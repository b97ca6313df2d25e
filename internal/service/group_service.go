package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"groupchat/internal/access"
	"groupchat/internal/metrics"
	"groupchat/internal/model"
	"groupchat/internal/repository"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type GroupService struct {
	groups   repository.GroupRepository
	users    repository.UserRepository
	events   EventPublisher
	notifier InviteNotifier
	log      *logrus.Logger
	now      func() time.Time
}

func NewGroupService(groups repository.GroupRepository, users repository.UserRepository,
	events EventPublisher, notifier InviteNotifier, log *logrus.Logger) *GroupService {
	if events == nil {
		events = NopPublisher{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &GroupService{
		groups:   groups,
		users:    users,
		events:   events,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GroupView 进入群组后返回给调用方的视图
type GroupView struct {
	Group     *model.Group
	CanInvite bool
}

type CreateGroupInput struct {
	Name    string
	Privacy model.Privacy
	Members string // 逗号分隔的邀请列表
}

type CreateGroupResult struct {
	Group   *model.Group
	Skipped []string // 不存在的用户，未加入
}

// ListGroups 只返回当前用户所在的群组，按名称排序
func (s *GroupService) ListGroups(ctx context.Context, username string) ([]model.Group, error) {
	all, err := s.groups.List(ctx)
	if err != nil {
		s.log.WithError(err).WithField("user", username).Error("list groups failed")
		return nil, err
	}
	mine := lo.Filter(all, func(g model.Group, _ int) bool {
		return access.IsMember(&g, username)
	})
	sort.Slice(mine, func(i, j int) bool {
		if mine[i].Name != mine[j].Name {
			return mine[i].Name < mine[j].Name
		}
		return mine[i].ID < mine[j].ID
	})
	return mine, nil
}

// EnterGroup 成员校验通过才返回群组；群组不存在同样视为拒绝
func (s *GroupService) EnterGroup(ctx context.Context, groupID, username string) (*GroupView, error) {
	group, err := s.memberGroup(ctx, groupID, username, "enter")
	if err != nil {
		return nil, err
	}
	return &GroupView{Group: group, CanInvite: access.IsCreator(group, username)}, nil
}

// ListMessages 返回按 createdAt 升序排列的消息，since 非零时只返回之后的消息
func (s *GroupService) ListMessages(ctx context.Context, groupID, username string, since time.Time) ([]model.Message, error) {
	if _, err := s.memberGroup(ctx, groupID, username, "read"); err != nil {
		return nil, err
	}
	messages, err := s.groups.ListMessages(ctx, groupID, since)
	if err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("list messages failed")
		return nil, err
	}
	SortMessages(messages)
	return messages, nil
}

func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput, creator string) (*CreateGroupResult, error) {
	name := access.NormalizeName(in.Name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}
	privacy := in.Privacy
	if privacy == "" {
		privacy = model.PrivacyPrivate
	}
	if !privacy.Valid() {
		return nil, ErrInvalidPrivacy
	}

	id := access.DeriveGroupID(name)
	logCtx := s.log.WithFields(logrus.Fields{"group_id": id, "user": creator})

	// 提前拒绝，省掉后面的用户查询；真正的互斥由仓储层的比较写入保证
	if _, err := s.groups.FindByID(ctx, id); err == nil {
		metrics.GroupCreateConflicts.Inc()
		return nil, ErrGroupExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Error("check existing group failed")
		return nil, err
	}

	members := map[string]bool{creator: true}
	var skipped []string
	for _, u := range access.ParseMembers(in.Members) {
		if u == creator {
			continue
		}
		ok, err := s.users.Exists(ctx, u)
		if err != nil {
			logCtx.WithError(err).WithField("invitee", u).Error("user lookup failed")
			return nil, err
		}
		if !ok {
			skipped = append(skipped, u)
			continue
		}
		members[u] = true
	}

	group := &model.Group{
		ID:        id,
		Name:      name,
		Creator:   creator,
		Privacy:   privacy,
		CreatedAt: s.now(),
		Members:   members,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			metrics.GroupCreateConflicts.Inc()
			logCtx.Warn("group id taken by a concurrent create")
			return nil, ErrGroupExists
		}
		logCtx.WithError(err).Error("create group failed")
		return nil, err
	}

	metrics.GroupsCreated.Inc()
	logCtx.WithField("members", len(members)).Info("group created")
	s.publish(ctx, Event{Type: EventGroupCreated, GroupID: id, Actor: creator, At: group.CreatedAt})
	return &CreateGroupResult{Group: group, Skipped: skipped}, nil
}

// Invite 仅创建者可邀请；目标用户必须已注册。任何一项不满足都不修改成员集合。
func (s *GroupService) Invite(ctx context.Context, groupID, inviter, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	logCtx := s.log.WithFields(logrus.Fields{"group_id": groupID, "user": inviter, "invitee": username})

	ok, err := s.users.Exists(ctx, username)
	if err != nil {
		logCtx.WithError(err).Error("user lookup failed")
		return err
	}
	if !ok {
		return ErrUserNotFound
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGroupNotFound
	}
	if err != nil {
		logCtx.WithError(err).Error("load group failed")
		return err
	}
	if !access.IsCreator(group, inviter) {
		metrics.AccessDenied.WithLabelValues("invite").Inc()
		logCtx.Warn("invite denied: not the creator")
		return ErrNotCreator
	}

	if err := s.groups.AddMember(ctx, groupID, username); err != nil {
		logCtx.WithError(err).Error("add member failed")
		return err
	}

	metrics.MembersInvited.Inc()
	logCtx.Info("member added")
	s.publish(ctx, Event{Type: EventMemberInvited, GroupID: groupID, Actor: inviter, Subject: username, At: s.now()})
	if err := s.notifier.NotifyInvite(ctx, username, group, inviter); err != nil {
		logCtx.WithError(err).Warn("invite notification failed")
	}
	return nil
}

func (s *GroupService) SendMessage(ctx context.Context, groupID, author, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrMessageEmpty
	}
	if _, err := s.memberGroup(ctx, groupID, author, "send"); err != nil {
		return nil, err
	}

	msg := &model.Message{
		Author:    author,
		Text:      text,
		CreatedAt: s.now(),
	}
	key, err := s.groups.AppendMessage(ctx, groupID, msg)
	if err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("append message failed")
		return nil, err
	}
	msg.Key = key

	metrics.MessagesSent.Inc()
	s.publish(ctx, Event{Type: EventMessageSent, GroupID: groupID, Actor: author, Subject: msg.Key, At: msg.CreatedAt})
	return msg, nil
}

// memberGroup 读取群组并校验成员资格，失败一律返回 ErrAccessDenied
func (s *GroupService) memberGroup(ctx context.Context, groupID, username, action string) (*model.Group, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.WithError(err).WithField("group_id", groupID).Error("load group failed")
		return nil, err
	}
	if !access.IsMember(group, username) {
		metrics.AccessDenied.WithLabelValues(action).Inc()
		s.log.WithFields(logrus.Fields{"group_id": groupID, "user": username, "action": action}).
			Warn("access denied")
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, action)
	}
	return group, nil
}

func (s *GroupService) publish(ctx context.Context, event Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"group_id": event.GroupID, "type": event.Type}).
			Warn("publish event failed")
	}
}

// SortMessages 按 createdAt 升序，时间相同时按生成键
func SortMessages(messages []model.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].Key < messages[j].Key
	})
}
