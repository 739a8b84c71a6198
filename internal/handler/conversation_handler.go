package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/service"
	"github.com/dredbirozsolt/livechat/internal/service/chat"
)

// ConversationHandler 访客侧会话处理器
// 访客以会话 ID 作为不透明凭据访问自己的会话。
type ConversationHandler struct {
	svc *service.Services
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(svc *service.Services) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// StartConversation 创建会话
// POST /api/v1/conversations
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	var req chat.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	conv, err := h.svc.Chat.StartConversation(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, conv)
}

// GetConversation 获取会话
// GET /api/v1/conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.svc.Chat.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// PostVisitorMessage 访客发送消息
// POST /api/v1/conversations/:id/messages
func (h *ConversationHandler) PostVisitorMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	msg, err := h.svc.Chat.AppendVisitorMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, msg)
}

// ListMessages 列出会话消息
// GET /api/v1/conversations/:id/messages
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	msgs, err := h.svc.Chat.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, msgs)
}

// MarkAgentMessagesRead 访客将 AI/客服消息置为已读
// POST /api/v1/conversations/:id/read
func (h *ConversationHandler) MarkAgentMessagesRead(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		role = model.RoleAgent
	}
	changed, err := h.svc.Chat.MarkRead(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"marked": changed})
}

// UnreadCount 未读消息数
// GET /api/v1/conversations/:id/unread
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	count, err := h.svc.Chat.UnreadCount(c.Request.Context(), c.Param("id"), c.Query("role"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"unread": count})
}
