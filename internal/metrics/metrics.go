package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GroupsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupchat_groups_created_total",
		Help: "Total number of groups created",
	})
	GroupCreateConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupchat_group_create_conflicts_total",
		Help: "Group creations rejected because the derived id already exists",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupchat_messages_sent_total",
		Help: "Total number of messages appended to groups",
	})
	MembersInvited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groupchat_members_invited_total",
		Help: "Total number of members added by invitation",
	})
	// 按动作区分的拒绝次数：enter / read / send / invite
	AccessDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groupchat_access_denied_total",
		Help: "Requests denied by the membership or creator check",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(
		GroupsCreated,
		GroupCreateConflicts,
		MessagesSent,
		MembersInvited,
		AccessDenied,
	)
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
