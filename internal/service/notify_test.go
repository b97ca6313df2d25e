package service

import (
	"context"
	"testing"

	"groupchat/internal/model"
	"groupchat/internal/pkg"
	"groupchat/internal/repository"
	"groupchat/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailNotifier_NotifyInvite(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepository)
	users.On("FindByUsername", ctx, "bob").Return(&model.User{Username: "bob", Email: "bob@example.com"}, nil)
	users.On("FindByUsername", ctx, "carol").Return(&model.User{Username: "carol"}, nil)
	users.On("FindByUsername", ctx, "ghost").Return(nil, repository.ErrNotFound)

	var sent []string
	n := NewMailNotifier(pkg.SMTPConfig{Host: "smtp.example.com"}, users)
	n.send = func(_ pkg.SMTPConfig, to, subject, body string) error {
		sent = append(sent, to)
		assert.Equal(t, "You were added to Team", subject)
		assert.Contains(t, body, "alice")
		return nil
	}

	group := &model.Group{ID: "g1", Name: "Team", Creator: "alice"}
	require.NoError(t, n.NotifyInvite(ctx, "bob", group, "alice"))
	require.NoError(t, n.NotifyInvite(ctx, "carol", group, "alice"))
	require.NoError(t, n.NotifyInvite(ctx, "ghost", group, "alice"))

	assert.Equal(t, []string{"bob@example.com"}, sent)
}
