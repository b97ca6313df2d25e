package handler

import (
	"net/http"
	"time"

	"groupchat/internal/middleware"
	"groupchat/internal/model"
	"groupchat/internal/service"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	svc *service.GroupService
}

type GroupCreateReq struct {
	Name    string        `json:"name" binding:"required"`
	Privacy model.Privacy `json:"privacy"`
	Members string        `json:"members"` // "bob, carol"
}

type SendMessageReq struct {
	Text string `json:"text" binding:"required"`
}

type InviteReq struct {
	Username string `json:"username" binding:"required"`
}

// GroupResp 群组视图，can_invite 决定客户端是否展示邀请入口
type GroupResp struct {
	*model.Group
	CanInvite bool `json:"can_invite"`
}

func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{svc: svc}
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.svc.ListGroups(c.Request.Context(), middleware.Username(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": groups})
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req GroupCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	res, err := h.svc.CreateGroup(c.Request.Context(), service.CreateGroupInput{
		Name:    req.Name,
		Privacy: req.Privacy,
		Members: req.Members,
	}, middleware.Username(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"group":   GroupResp{Group: res.Group, CanInvite: true},
		"skipped": res.Skipped,
	})
}

// Enter 进入群组，非成员返回 403
func (h *GroupHandler) Enter(c *gin.Context) {
	view, err := h.svc.EnterGroup(c.Request.Context(), c.Param("id"), middleware.Username(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GroupResp{Group: view.Group, CanInvite: view.CanInvite})
}

// Messages ?since=RFC3339Nano 只返回之后的消息，供客户端轮询
func (h *GroupHandler) Messages(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid since"})
			return
		}
		since = t
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), c.Param("id"), middleware.Username(c), since)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"list": messages})
}

func (h *GroupHandler) Send(c *gin.Context) {
	var req SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), c.Param("id"), middleware.Username(c), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Invite 仅创建者可调用
func (h *GroupHandler) Invite(c *gin.Context) {
	var req InviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	if err := h.svc.Invite(c.Request.Context(), c.Param("id"), middleware.Username(c), req.Username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
