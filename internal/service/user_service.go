package service

import (
	"context"
	"errors"
	"strings"

	"groupchat/internal/model"
	"groupchat/internal/pkg"
	"groupchat/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	repo   repository.UserRepository
	tokens repository.TokenRepository
	issuer *pkg.TokenIssuer
	log    *logrus.Logger
}

func NewUserService(repo repository.UserRepository, tokens repository.TokenRepository,
	issuer *pkg.TokenIssuer, log *logrus.Logger) *UserService {
	return &UserService{
		repo:   repo,
		tokens: tokens,
		issuer: issuer,
		log:    log,
	}
}

func (s *UserService) Register(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &model.User{
		Username: username,
		Password: string(hash),
		Email:    strings.TrimSpace(email),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return ErrUsernameTaken
		}
		s.log.WithError(err).WithField("user", username).Error("register failed")
		return err
	}
	s.log.WithField("user", username).Info("user registered")
	return nil
}

// Login 校验密码后签发 token，并把 access token 写入存储（同一账号只保留最新一次登录）
func (s *UserService) Login(ctx context.Context, username, password string) (*pkg.Pair, error) {
	username = strings.TrimSpace(username)
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.WithError(err).WithField("user", username).Error("load user failed")
		}
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user.Username)
}

// Logout 清掉 access token 与 refresh jti，之后两者都不能再用
func (s *UserService) Logout(ctx context.Context, username string) error {
	return s.tokens.DeleteUserToken(ctx, username)
}

// Refresh 利用 refresh 换一对新 token。只有最近一次签发的 refresh 有效，用过即轮换，登出后失效
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	current, err := s.tokens.GetRefreshID(ctx, claims.Username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil || claims.ID == "" || current != claims.ID {
		s.log.WithField("user", claims.Username).Warn("revoked refresh token presented")
		return nil, ErrRefreshRevoked
	}
	return s.issue(ctx, claims.Username)
}

// Authenticate 校验 access token 并确认它仍是该用户当前的登录态，通过后续期
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return "", err
	}

	current, err := s.tokens.GetUserToken(ctx, claims.Username)
	if err != nil || current != accessToken {
		return "", ErrSessionReplaced
	}

	if err := s.tokens.ExtendUserToken(ctx, claims.Username, s.issuer.AccessTTL); err != nil {
		return "", err
	}
	return claims.Username, nil
}

func (s *UserService) issue(ctx context.Context, username string) (*pkg.Pair, error) {
	pair, err := s.issuer.GeneratePair(username)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.AddUserToken(ctx, username, pair.AccessToken, s.issuer.AccessTTL); err != nil {
		return nil, err
	}
	if err := s.tokens.AddRefreshID(ctx, username, pair.RefreshID, s.issuer.RefreshTTL); err != nil {
		return nil, err
	}
	return pair, nil
}
