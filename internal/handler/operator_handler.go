package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dredbirozsolt/livechat/internal/middleware"
	"github.com/dredbirozsolt/livechat/internal/service"
	"github.com/dredbirozsolt/livechat/internal/service/chat"
)

// OperatorHandler 客服侧处理器
// 所有路由均要求已认证的客服身份。
type OperatorHandler struct {
	svc *service.Services
}

// NewOperatorHandler 创建客服处理器
func NewOperatorHandler(svc *service.Services) *OperatorHandler {
	return &OperatorHandler{svc: svc}
}

// ListConversations 列出会话
// GET /api/v1/operator/conversations
func (h *OperatorHandler) ListConversations(c *gin.Context) {
	var req chat.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	convs, total, err := h.svc.Chat.List(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, convs, total, req.Page, req.Size)
}

// GetConversation 获取会话
// GET /api/v1/operator/conversations/:id
func (h *OperatorHandler) GetConversation(c *gin.Context) {
	conv, err := h.svc.Chat.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// ListMessages 列出会话消息
// GET /api/v1/operator/conversations/:id/messages
func (h *OperatorHandler) ListMessages(c *gin.Context) {
	msgs, err := h.svc.Chat.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, msgs)
}

// PostMessage 客服发送消息
// POST /api/v1/operator/conversations/:id/messages
func (h *OperatorHandler) PostMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		Unauthorized(c, "operator identity missing")
		return
	}

	msg, err := h.svc.Chat.AppendOperatorMessage(c.Request.Context(), c.Param("id"), operatorID, req.Content)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, msg)
}

// EscalateRequest 升级请求
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// Escalate 将会话升级给人工客服
// POST /api/v1/operator/conversations/:id/escalate
func (h *OperatorHandler) Escalate(c *gin.Context) {
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		Unauthorized(c, "operator identity missing")
		return
	}

	conv, err := h.svc.Chat.Escalate(c.Request.Context(), c.Param("id"), operatorID, req.Reason)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// Resolve 将会话标记为已解决
// POST /api/v1/operator/conversations/:id/resolve
func (h *OperatorHandler) Resolve(c *gin.Context) {
	conv, err := h.svc.Chat.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// Close 关闭会话
// POST /api/v1/operator/conversations/:id/close
func (h *OperatorHandler) Close(c *gin.Context) {
	conv, err := h.svc.Chat.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// MarkRead 将会话访客消息置为已读
// POST /api/v1/operator/conversations/:id/read
func (h *OperatorHandler) MarkRead(c *gin.Context) {
	changed, err := h.svc.Chat.MarkRead(c.Request.Context(), c.Param("id"), c.Query("role"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"marked": changed})
}

// ========== 在线状态 ==========

// Heartbeat 上报心跳
// POST /api/v1/operator/presence/heartbeat
func (h *OperatorHandler) Heartbeat(c *gin.Context) {
	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		Unauthorized(c, "operator identity missing")
		return
	}
	if err := h.svc.Presence.Heartbeat(c.Request.Context(), operatorID); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// Online 手动上线
// POST /api/v1/operator/presence/online
func (h *OperatorHandler) Online(c *gin.Context) {
	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		Unauthorized(c, "operator identity missing")
		return
	}
	if err := h.svc.Presence.SetOnline(c.Request.Context(), operatorID); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// Offline 手动下线
// POST /api/v1/operator/presence/offline
func (h *OperatorHandler) Offline(c *gin.Context) {
	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		Unauthorized(c, "operator identity missing")
		return
	}
	if err := h.svc.Presence.SetOffline(c.Request.Context(), operatorID); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// ListAvailable 列出当前可接待的客服
// GET /api/v1/operator/presence/available
func (h *OperatorHandler) ListAvailable(c *gin.Context) {
	list, err := h.svc.Presence.ListAvailable(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, list)
}
