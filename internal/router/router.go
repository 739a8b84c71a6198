package router

import (
	"github.com/gin-gonic/gin"

	"github.com/dredbirozsolt/livechat/internal/handler"
	"github.com/dredbirozsolt/livechat/internal/middleware"
	"github.com/dredbirozsolt/livechat/internal/service"
)

// SetupRouter 设置路由
// 三个面向不同角色的路由组：访客（匿名，会话 ID 即凭据）、
// 客服（JWT 认证）、管理（JWT 认证 + admin 角色）。
func SetupRouter(h *handler.Handlers, svc *service.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", h.Auth.Login)
			authGroup.GET("/me", middleware.RequireAuth(svc), h.Auth.Me)
		}

		// 访客侧：无需登录，会话 ID 本身是访问凭据
		conversations := v1.Group("/conversations")
		{
			conversations.POST("", h.Conversation.StartConversation)
			conversations.GET("/:id", h.Conversation.GetConversation)
			conversations.POST("/:id/messages", h.Conversation.PostVisitorMessage)
			conversations.GET("/:id/messages", h.Conversation.ListMessages)
			conversations.POST("/:id/read", h.Conversation.MarkAgentMessagesRead)
			conversations.GET("/:id/unread", h.Conversation.UnreadCount)
		}

		// 客服侧
		operator := v1.Group("/operator")
		operator.Use(middleware.RequireAuth(svc))
		{
			operator.GET("/conversations", h.Operator.ListConversations)
			operator.GET("/conversations/:id", h.Operator.GetConversation)
			operator.GET("/conversations/:id/messages", h.Operator.ListMessages)
			operator.POST("/conversations/:id/messages", h.Operator.PostMessage)
			operator.POST("/conversations/:id/escalate", h.Operator.Escalate)
			operator.POST("/conversations/:id/resolve", h.Operator.Resolve)
			operator.POST("/conversations/:id/close", h.Operator.Close)
			operator.POST("/conversations/:id/read", h.Operator.MarkRead)

			operator.POST("/presence/heartbeat", h.Operator.Heartbeat)
			operator.POST("/presence/online", h.Operator.Online)
			operator.POST("/presence/offline", h.Operator.Offline)
			operator.GET("/presence/available", h.Operator.ListAvailable)
		}

		// 管理侧
		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAuth(svc), middleware.RequireAdmin())
		{
			admin.GET("/health", h.Admin.HealthStatus)
			admin.POST("/health/ai/check", h.Admin.CheckAI)
			admin.PUT("/health/ai", h.Admin.ToggleAI)
			admin.PUT("/health/operator-channel", h.Admin.ToggleOperatorChannel)

			admin.GET("/presence", h.Admin.ListPresence)

			admin.POST("/retirement/sweep", h.Admin.RunRetirementSweep)
			admin.POST("/retirement/hard-delete", h.Admin.RunHardDelete)

			admin.GET("/conversations/:id", h.Admin.GetConversationAny)
			admin.DELETE("/conversations/:id", h.Admin.SoftDeleteConversation)
			admin.POST("/conversations/:id/anonymize", h.Admin.AnonymizeConversation)
			admin.POST("/conversations/:id/restore", h.Admin.RestoreConversation)

			admin.POST("/operators", h.Admin.CreateOperator)
			admin.GET("/operators", h.Admin.ListOperators)
		}
	}

	return r
}
