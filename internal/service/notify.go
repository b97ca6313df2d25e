package service

import (
	"context"
	"errors"

	"groupchat/internal/model"
	"groupchat/internal/pkg"
	"groupchat/internal/repository"
)

// InviteNotifier 通知被邀请的用户
type InviteNotifier interface {
	NotifyInvite(ctx context.Context, username string, group *model.Group, inviter string) error
}

// MailNotifier 通过邮件通知，用户没有登记邮箱时跳过
type MailNotifier struct {
	cfg   pkg.SMTPConfig
	users repository.UserRepository
	send  func(cfg pkg.SMTPConfig, to, subject, htmlBody string) error
}

func NewMailNotifier(cfg pkg.SMTPConfig, users repository.UserRepository) *MailNotifier {
	return &MailNotifier{cfg: cfg, users: users, send: pkg.SendEmail}
}

func (n *MailNotifier) NotifyInvite(ctx context.Context, username string, group *model.Group, inviter string) error {
	user, err := n.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Email == "" {
		return nil
	}
	return n.send(n.cfg, user.Email, "You were added to "+group.Name, pkg.InviteHTML(group.Name, inviter))
}

type NopNotifier struct{}

func (NopNotifier) NotifyInvite(context.Context, string, *model.Group, string) error { return nil }
