package router

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"groupchat/internal/model"
	"groupchat/internal/pkg"
	"groupchat/internal/repository/mysql"
	redisrepo "groupchat/internal/repository/redis"
	"groupchat/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := mysql.InitDB(mysql.DriverSQLite, filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := mysql.NewUserRepository(db)
	issuer := pkg.NewTokenIssuer("access", "refresh", time.Minute, time.Hour)
	userSvc := service.NewUserService(users, redisrepo.NewTokenRepository(rdb, "test:"), issuer, log)
	groupSvc := service.NewGroupService(redisrepo.NewGroupRepository(rdb, "test:"), users, nil, nil, log)

	return &testServer{
		t:      t,
		engine: InitRouter(Options{Users: userSvc, Groups: groupSvc, Log: log}),
	}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// signup 注册并登录，返回 access token
func (s *testServer) signup(username string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/user/register", "", gin.H{"username": username, "password": "secret1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/user/login", "", gin.H{"username": username, "password": "secret1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var pair pkg.Pair
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.NotEmpty(s.t, pair.AccessToken)
	return pair.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type msgBody struct {
	Msg string `json:"msg"`
}

func TestGroupFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	carol := s.signup("carol")

	sum := sha256.Sum256([]byte("my team"))
	wantID := hex.EncodeToString(sum[:])[:16]

	// 创建：ghost 不存在被跳过
	w := s.do(http.MethodPost, "/api/groups", alice, gin.H{"name": " My  Team ", "members": "bob, ghost"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Group struct {
			ID        string          `json:"id"`
			Name      string          `json:"name"`
			Privacy   string          `json:"privacy"`
			Members   map[string]bool `json:"members"`
			CanInvite bool            `json:"can_invite"`
		} `json:"group"`
		Skipped []string `json:"skipped"`
	}](t, w)
	assert.Equal(t, wantID, created.Group.ID)
	assert.Equal(t, "My Team", created.Group.Name)
	assert.Equal(t, "private", created.Group.Privacy)
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, created.Group.Members)
	assert.Equal(t, []string{"ghost"}, created.Skipped)

	w = s.do(http.MethodPost, "/api/groups", bob, gin.H{"name": "my team"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Group already exists", decode[msgBody](t, w).Msg)

	// 列表只含自己所在的群组
	w = s.do(http.MethodGet, "/api/groups", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		List []model.Group `json:"list"`
	}](t, w).List, 1)

	w = s.do(http.MethodGet, "/api/groups", carol, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[struct {
		List []model.Group `json:"list"`
	}](t, w).List)

	// 进入
	w = s.do(http.MethodGet, "/api/groups/"+wantID, carol, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodGet, "/api/groups/"+wantID, bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[struct {
		CanInvite bool `json:"can_invite"`
	}](t, w).CanInvite)
	w = s.do(http.MethodGet, "/api/groups/"+wantID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[struct {
		CanInvite bool `json:"can_invite"`
	}](t, w).CanInvite)

	// 邀请
	w = s.do(http.MethodPost, "/api/groups/"+wantID+"/members", bob, gin.H{"username": "carol"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only the creator can invite users", decode[msgBody](t, w).Msg)
	w = s.do(http.MethodGet, "/api/groups/"+wantID, carol, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "non-creator invite must not add the member")

	w = s.do(http.MethodPost, "/api/groups/"+wantID+"/members", alice, gin.H{"username": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User does not exist", decode[msgBody](t, w).Msg)

	w = s.do(http.MethodPost, "/api/groups/"+wantID+"/members", alice, gin.H{"username": "carol"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/api/groups/"+wantID, carol, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 消息
	for _, msg := range []struct{ token, text string }{{alice, "first"}, {bob, "second"}, {carol, "third"}} {
		w = s.do(http.MethodPost, "/api/groups/"+wantID+"/messages", msg.token, gin.H{"text": msg.text})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		time.Sleep(2 * time.Millisecond)
	}
	w = s.do(http.MethodPost, "/api/groups/"+wantID+"/messages", alice, gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/groups/"+wantID+"/messages", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		List []model.Message `json:"list"`
	}](t, w).List
	require.Len(t, list, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{list[0].Text, list[1].Text, list[2].Text})
	assert.Equal(t, "alice", list[0].Author)

	since := url.QueryEscape(list[0].CreatedAt.Format(time.RFC3339Nano))
	w = s.do(http.MethodGet, "/api/groups/"+wantID+"/messages?since="+since, bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	newer := decode[struct {
		List []model.Message `json:"list"`
	}](t, w).List
	require.Len(t, newer, 2)
	assert.Equal(t, "second", newer[0].Text)

	w = s.do(http.MethodGet, "/api/groups/"+wantID+"/messages?since=yesterday", bob, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	outsider := s.signup("dave")
	w = s.do(http.MethodGet, "/api/groups/"+wantID+"/messages", outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, "/api/groups/"+wantID+"/messages", outsider, gin.H{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateGroupValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")

	w := s.do(http.MethodPost, "/api/groups", alice, gin.H{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "group name required", decode[msgBody](t, w).Msg)

	w = s.do(http.MethodPost, "/api/groups", alice, gin.H{"name": "Team", "privacy": "secret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/groups", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodGet, "/api/groups", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	first := s.signup("alice")
	w = s.do(http.MethodPost, "/api/user/register", "", gin.H{"username": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/user/login", "", gin.H{"username": "alice", "password": "wrong-pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 再次登录后旧 token 失效
	w = s.do(http.MethodPost, "/api/user/login", "", gin.H{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decode[pkg.Pair](t, w)

	w = s.do(http.MethodGet, "/api/groups", first, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodGet, "/api/groups", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/token/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decode[pkg.Pair](t, w)

	// refresh 用过即轮换
	w = s.do(http.MethodPost, "/api/token/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/user/logout", refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/groups", refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 登出后 refresh 也不能再换出新的 token
	w = s.do(http.MethodPost, "/api/token/refresh", "", gin.H{"refresh_token": refreshed.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.ErrRefreshRevoked.Error(), decode[msgBody](t, w).Msg)
}

func TestUsernameLength(t *testing.T) {
	s := newTestServer(t)

	long := strings.Repeat("a", 33)
	w := s.do(http.MethodPost, "/api/user/register", "", gin.H{"username": long, "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.signup(strings.Repeat("b", 32))

	// 登录时用户名两端的空白会被去掉
	w = s.do(http.MethodPost, "/api/user/login", "", gin.H{"username": " " + strings.Repeat("b", 32) + " ", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
