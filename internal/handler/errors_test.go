package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"groupchat/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrGroupNameRequired, http.StatusBadRequest},
		{service.ErrMessageEmpty, http.StatusBadRequest},
		{service.ErrUsernameRequired, http.StatusBadRequest},
		{fmt.Errorf("%w: enter", service.ErrAccessDenied), http.StatusForbidden},
		{service.ErrNotCreator, http.StatusForbidden},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrGroupNotFound, http.StatusNotFound},
		{service.ErrGroupExists, http.StatusConflict},
		{service.ErrUsernameTaken, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}
