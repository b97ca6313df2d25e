package router

import (
	"net/http"
	"time"

	"groupchat/internal/handler"
	"groupchat/internal/metrics"
	"groupchat/internal/middleware"
	"groupchat/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Users       *service.UserService
	Groups      *service.GroupService
	Log         *logrus.Logger
	CORSOrigins []string
}

func InitRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(opts.Log), gin.Recovery())

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	user := handler.NewUserHandler(opts.Users)
	group := handler.NewGroupHandler(opts.Groups)
	auth := middleware.AuthMiddleware(opts.Users)

	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"msg": "pong"}) })
	r.GET("/metrics", metrics.Handler())

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
		userGroup.POST("/logout", auth, user.Logout)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	// 群组相关接口，全部需要登录
	groupsGroup := r.Group("/api/groups")
	groupsGroup.Use(auth)
	{
		groupsGroup.GET("", group.List)
		groupsGroup.POST("", group.Create)
		groupsGroup.GET("/:id", group.Enter)
		groupsGroup.GET("/:id/messages", group.Messages)
		groupsGroup.POST("/:id/messages", group.Send)
		groupsGroup.POST("/:id/members", group.Invite)
	}

	return r
}
