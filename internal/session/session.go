package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"groupchat/internal/access"
	"groupchat/internal/model"
	"groupchat/internal/service"

	"github.com/sirupsen/logrus"
)

// DefaultInterval 打开群组后的消息轮询间隔
const DefaultInterval = 3 * time.Second

type State int

const (
	StateUnauthenticated State = iota
	StateGroupListLoaded
	StateGroupEntered
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateGroupListLoaded:
		return "group-list-loaded"
	case StateGroupEntered:
		return "group-entered"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrNoGroup          = errors.New("select a group first")
)

type GroupView struct {
	model.Group
	CanInvite bool `json:"can_invite"`
}

type CreateRequest struct {
	Name    string        `json:"name"`
	Privacy model.Privacy `json:"privacy"`
	Members string        `json:"members"`
}

type CreateResult struct {
	Group   GroupView
	Skipped []string
}

// Backend 会话依赖的服务端操作
type Backend interface {
	ListGroups(ctx context.Context) ([]model.Group, error)
	EnterGroup(ctx context.Context, groupID string) (*GroupView, error)
	ListMessages(ctx context.Context, groupID string, since time.Time) ([]model.Message, error)
	CreateGroup(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Invite(ctx context.Context, groupID, username string) error
	SendMessage(ctx context.Context, groupID, text string) (*model.Message, error)
}

// View 渲染层
type View interface {
	ShowGroups(groups []model.Group)
	ShowGroup(group *GroupView)
	// ShowMessages 只传入新到达的消息，已按 createdAt 升序
	ShowMessages(messages []model.Message)
	// RedrawMessages 有消息晚到且时间早于已展示内容时，传入完整的有序列表重绘
	RedrawMessages(messages []model.Message)
	Alert(msg string)
}

// Session 一个登录用户的客户端状态。当前群组挂在会话上，轮询与群组绑定：
// 进入新群组或离开时取消旧的轮询，过期的轮询结果按 generation 丢弃。
type Session struct {
	backend  Backend
	view     View
	log      *logrus.Logger
	interval time.Duration

	mu       sync.Mutex
	username string
	state    State
	current  *GroupView
	gen      uint64
	messages []model.Message
	seen     map[string]bool
	poller   *Poller
}

func New(backend Backend, view View, username string, interval time.Duration, log *logrus.Logger) *Session {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Session{
		backend:  backend,
		view:     view,
		log:      log,
		interval: interval,
		username: username,
		state:    StateUnauthenticated,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current 当前打开的群组，未打开时为 nil
func (s *Session) Current() *GroupView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Messages 当前群组已加载的消息副本
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

func (s *Session) LoadGroups(ctx context.Context) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	groups, err := s.backend.ListGroups(ctx)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if s.state == StateUnauthenticated {
		s.state = StateGroupListLoaded
	}
	s.mu.Unlock()

	s.view.ShowGroups(groups)
	return nil
}

// Enter 打开群组：校验成员资格，加载全部消息，并启动新的轮询
func (s *Session) Enter(ctx context.Context, groupID string) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	view, err := s.backend.EnterGroup(ctx, groupID)
	if err != nil {
		if IsStatus(err, http.StatusForbidden) || errors.Is(err, service.ErrAccessDenied) {
			s.view.Alert("Access denied")
			return err
		}
		return s.fail(err)
	}

	s.mu.Lock()
	old := s.poller
	s.poller = nil
	s.gen++
	gen := s.gen
	s.current = view
	s.state = StateGroupEntered
	s.messages = nil
	s.seen = make(map[string]bool)
	s.mu.Unlock()
	old.Stop()

	s.view.ShowGroup(view)
	if err := s.refresh(ctx, gen); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Warn("initial message load failed")
	}

	poller := StartPoller(context.WithoutCancel(ctx), s.interval, func(pctx context.Context) {
		if err := s.refresh(pctx, gen); err != nil && pctx.Err() == nil {
			s.log.WithError(err).WithField("group_id", groupID).Debug("poll failed")
		}
	})

	s.mu.Lock()
	if s.gen == gen {
		s.poller = poller
		poller = nil
	}
	s.mu.Unlock()
	// 期间又进入了别的群组
	poller.Stop()
	return nil
}

// Leave 关闭当前群组并停止轮询
func (s *Session) Leave() {
	s.mu.Lock()
	old := s.poller
	s.poller = nil
	s.gen++
	s.current = nil
	s.messages = nil
	s.seen = nil
	if s.state == StateGroupEntered {
		s.state = StateGroupListLoaded
	}
	s.mu.Unlock()
	old.Stop()
}

// Refresh 立即拉取当前群组的新消息
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	open := s.current != nil
	s.mu.Unlock()
	if !open {
		return ErrNoGroup
	}
	return s.refresh(ctx, gen)
}

func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	current := s.current
	gen := s.gen
	s.mu.Unlock()
	if current == nil {
		s.view.Alert("Select a group first")
		return ErrNoGroup
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if _, err := s.backend.SendMessage(ctx, current.ID, text); err != nil {
		return s.fail(err)
	}
	return s.refresh(ctx, gen)
}

// Invite 仅创建者可见；服务端仍会再校验一次
func (s *Session) Invite(ctx context.Context, username string) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		s.view.Alert("Select a group first")
		return ErrNoGroup
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	if !current.CanInvite {
		s.view.Alert("Only the creator can invite users")
		return service.ErrNotCreator
	}
	if err := s.backend.Invite(ctx, current.ID, username); err != nil {
		return s.fail(err)
	}
	s.view.Alert(username + " added")
	return nil
}

// Create 创建群组后刷新群组列表
func (s *Session) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if access.NormalizeName(req.Name) == "" {
		s.view.Alert("Group name required")
		return nil, service.ErrGroupNameRequired
	}

	res, err := s.backend.CreateGroup(ctx, req)
	if err != nil {
		return nil, s.fail(err)
	}
	if len(res.Skipped) > 0 {
		s.view.Alert("Skipped unknown users: " + strings.Join(res.Skipped, ", "))
	}
	if err := s.LoadGroups(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Close 停止轮询
func (s *Session) Close() {
	s.Leave()
}

// refresh 每次拉取群组的全部消息并按键去重。并发发送时 createdAt 较早的消息可能更晚落库，
// 只拉 since 之后的消息会漏掉它。generation 已变化（切换或离开群组）则丢弃结果
func (s *Session) refresh(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if s.gen != gen || s.current == nil {
		s.mu.Unlock()
		return nil
	}
	groupID := s.current.ID
	s.mu.Unlock()

	fetched, err := s.backend.ListMessages(ctx, groupID, time.Time{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.WithField("group_id", groupID).Debug("dropping stale poll result")
		return nil
	}

	var fresh []model.Message
	for _, m := range fetched {
		key := messageKey(m)
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return nil
	}
	service.SortMessages(fresh)

	// 新消息早于已展示的最后一条时整体重绘，保证终端上始终按 createdAt 升序
	late := len(s.messages) > 0 && messageBefore(fresh[0], s.messages[len(s.messages)-1])
	s.messages = append(s.messages, fresh...)
	service.SortMessages(s.messages)

	// 持锁渲染，离开群组之后不会再输出旧群组的消息
	if late {
		s.view.RedrawMessages(append([]model.Message(nil), s.messages...))
	} else {
		s.view.ShowMessages(fresh)
	}
	return nil
}

func messageKey(m model.Message) string {
	if m.Key != "" {
		return m.Key
	}
	return m.Author + "\x00" + m.CreatedAt.Format(time.RFC3339Nano) + "\x00" + m.Text
}

func messageBefore(a, b model.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Key < b.Key
}

func (s *Session) requireLogin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// fail 把错误以提示的形式展示，再原样返回
func (s *Session) fail(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		s.view.Alert(apiErr.Error())
		return err
	}
	s.view.Alert(err.Error())
	return err
}
