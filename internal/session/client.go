package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"groupchat/internal/model"

	"github.com/go-resty/resty/v2"
)

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return http.StatusText(e.Status)
	}
	return e.Msg
}

// IsStatus 判断错误是否为指定状态码的 APIError
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Credentials struct {
	Server       string `json:"server"`
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Client 基于 HTTP API 的 Backend 实现，access 过期时自动用 refresh 换新
type Client struct {
	http *resty.Client

	mu        sync.RWMutex
	creds     Credentials
	// 刷新后回调，用于把新 token 写回会话文件
	onRefresh func(Credentials)
}

func NewClient(creds Credentials, onRefresh func(Credentials)) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(creds.Server).
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
		creds:     creds,
		onRefresh: onRefresh,
	}
}

func (c *Client) Credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

type msgResp struct {
	Msg string `json:"msg"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) Register(ctx context.Context, username, password, email string) error {
	_, err := c.send(ctx, http.MethodPost, "/api/user/register", false, map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	}, nil)
	return err
}

func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	var pair tokenPair
	if _, err := c.send(ctx, http.MethodPost, "/api/user/login", false, map[string]string{
		"username": username,
		"password": password,
	}, &pair); err != nil {
		return Credentials{}, err
	}

	c.mu.Lock()
	c.creds.Username = username
	c.creds.AccessToken = pair.AccessToken
	c.creds.RefreshToken = pair.RefreshToken
	creds := c.creds
	c.mu.Unlock()
	return creds, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.send(ctx, http.MethodPost, "/api/user/logout", true, nil, nil)
	return err
}

func (c *Client) ListGroups(ctx context.Context) ([]model.Group, error) {
	var out struct {
		List []model.Group `json:"list"`
	}
	if _, err := c.send(ctx, http.MethodGet, "/api/groups", true, nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

func (c *Client) EnterGroup(ctx context.Context, groupID string) (*GroupView, error) {
	var view GroupView
	if _, err := c.send(ctx, http.MethodGet, "/api/groups/"+groupID, true, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ListMessages(ctx context.Context, groupID string, since time.Time) ([]model.Message, error) {
	path := "/api/groups/" + groupID + "/messages"
	if !since.IsZero() {
		path += "?since=" + since.UTC().Format(time.RFC3339Nano)
	}
	var out struct {
		List []model.Message `json:"list"`
	}
	if _, err := c.send(ctx, http.MethodGet, path, true, nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

func (c *Client) CreateGroup(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	var out struct {
		Group   GroupView `json:"group"`
		Skipped []string  `json:"skipped"`
	}
	if _, err := c.send(ctx, http.MethodPost, "/api/groups", true, req, &out); err != nil {
		return nil, err
	}
	return &CreateResult{Group: out.Group, Skipped: out.Skipped}, nil
}

func (c *Client) Invite(ctx context.Context, groupID, username string) error {
	_, err := c.send(ctx, http.MethodPost, "/api/groups/"+groupID+"/members", true,
		map[string]string{"username": username}, nil)
	return err
}

func (c *Client) SendMessage(ctx context.Context, groupID, text string) (*model.Message, error) {
	var msg model.Message
	if _, err := c.send(ctx, http.MethodPost, "/api/groups/"+groupID+"/messages", true,
		map[string]string{"text": text}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// send 发请求；需要登录的接口遇到 401 时刷新一次 token 再重试
func (c *Client) send(ctx context.Context, method, path string, auth bool, body, result any) (*resty.Response, error) {
	resp, err := c.once(ctx, method, path, auth, body, result)
	if !auth || !IsStatus(err, http.StatusUnauthorized) {
		return resp, err
	}
	if rerr := c.refresh(ctx); rerr != nil {
		return resp, err
	}
	return c.once(ctx, method, path, auth, body, result)
}

func (c *Client) once(ctx context.Context, method, path string, auth bool, body, result any) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx).SetError(&msgResp{})
	if auth {
		c.mu.RLock()
		req.SetAuthToken(c.creds.AccessToken)
		c.mu.RUnlock()
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if m, ok := resp.Error().(*msgResp); ok {
			apiErr.Msg = m.Msg
		}
		return resp, apiErr
	}
	return resp, nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.RLock()
	refreshToken := c.creds.RefreshToken
	c.mu.RUnlock()
	if refreshToken == "" {
		return errors.New("no refresh token")
	}

	var pair tokenPair
	if _, err := c.once(ctx, http.MethodPost, "/api/token/refresh", false,
		map[string]string{"refresh_token": refreshToken}, &pair); err != nil {
		return err
	}

	c.mu.Lock()
	c.creds.AccessToken = pair.AccessToken
	c.creds.RefreshToken = pair.RefreshToken
	creds := c.creds
	c.mu.Unlock()

	if c.onRefresh != nil {
		c.onRefresh(creds)
	}
	return nil
}
