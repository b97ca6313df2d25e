package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"groupchat/internal/pkg"
	"groupchat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ContextUsernameKey = "username"

// Authenticator 校验 access token 并返回用户名
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			return
		}

		username, err := auth.Authenticate(c.Request.Context(), parts[1])
		switch {
		case err == nil:
		case errors.Is(err, service.ErrSessionReplaced):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Account has been logging elsewhere"})
			return
		case isTokenError(err):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
			return
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
			return
		}

		// 注入 username
		c.Set(ContextUsernameKey, username)
		c.Next()
	}
}

// Username 取出鉴权中间件注入的用户名
func Username(c *gin.Context) string {
	return c.GetString(ContextUsernameKey)
}

func isTokenError(err error) bool {
	return errors.Is(err, pkg.ErrTokenExpired) ||
		errors.Is(err, pkg.ErrTokenInvalid) ||
		errors.Is(err, pkg.ErrTokenParseFailure) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable) ||
		errors.Is(err, jwt.ErrTokenInvalidClaims)
}
