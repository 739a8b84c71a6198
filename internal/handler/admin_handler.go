package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dredbirozsolt/livechat/internal/service"
	"github.com/dredbirozsolt/livechat/internal/service/auth"
	"github.com/dredbirozsolt/livechat/internal/service/retirement"
)

// AdminHandler 管理端处理器
// 服务健康开关、数据退役与恢复等运维操作，仅限 admin 角色。
type AdminHandler struct {
	svc *service.Services
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(svc *service.Services) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ========== 服务健康 ==========

// HealthStatus 获取各依赖服务健康状态
// GET /api/v1/admin/health
func (h *AdminHandler) HealthStatus(c *gin.Context) {
	status, err := h.svc.Health.Status(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, status)
}

// CheckAI 主动探测 AI 服务
// POST /api/v1/admin/health/ai/check
func (h *AdminHandler) CheckAI(c *gin.Context) {
	health, err := h.svc.Health.CheckAI(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, health)
}

// ToggleRequest 服务开关请求
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ToggleAI 启用/禁用 AI 服务
// PUT /api/v1/admin/health/ai
func (h *AdminHandler) ToggleAI(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	health, err := h.svc.Health.ToggleAI(c.Request.Context(), *req.Enabled)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, health)
}

// ToggleOperatorChannel 启用/禁用人工客服通道
// PUT /api/v1/admin/health/operator-channel
func (h *AdminHandler) ToggleOperatorChannel(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	health, err := h.svc.Health.ToggleOperatorChannel(c.Request.Context(), *req.Enabled)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, health)
}

// ListPresence 列出当前可接待的客服（管理视角）
// GET /api/v1/admin/presence
func (h *AdminHandler) ListPresence(c *gin.Context) {
	list, err := h.svc.Presence.ListAvailable(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, list)
}

// ========== 数据退役 ==========

// SweepRequest 退役扫描请求
type SweepRequest struct {
	DryRun bool `json:"dry_run"`
}

// RunRetirementSweep 触发一次退役扫描
// POST /api/v1/admin/retirement/sweep
func (h *AdminHandler) RunRetirementSweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	report, err := h.svc.Retirement.Sweep(c.Request.Context(), retirement.Options{DryRun: req.DryRun})
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, report)
}

// RunHardDelete 物理清除早已匿名化的会话
// POST /api/v1/admin/retirement/hard-delete
func (h *AdminHandler) RunHardDelete(c *gin.Context) {
	report, err := h.svc.Retirement.HardDelete(c.Request.Context(), retirement.Options{})
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, report)
}

// SoftDeleteRequest 手动退役请求
type SoftDeleteRequest struct {
	Reason string `json:"reason"`
}

// SoftDeleteConversation 手动退役会话
// DELETE /api/v1/admin/conversations/:id
func (h *AdminHandler) SoftDeleteConversation(c *gin.Context) {
	var req SoftDeleteRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.svc.Chat.SoftDelete(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// AnonymizeConversation 匿名化会话
// POST /api/v1/admin/conversations/:id/anonymize
func (h *AdminHandler) AnonymizeConversation(c *gin.Context) {
	if err := h.svc.Chat.Anonymize(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// RestoreConversation 恢复已退役会话
// POST /api/v1/admin/conversations/:id/restore
func (h *AdminHandler) RestoreConversation(c *gin.Context) {
	if err := h.svc.Chat.Restore(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// GetConversationAny 获取会话（含已退役）
// GET /api/v1/admin/conversations/:id
func (h *AdminHandler) GetConversationAny(c *gin.Context) {
	conv, err := h.svc.Chat.GetAny(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// ========== 客服账号 ==========

// CreateOperator 创建客服账号
// POST /api/v1/admin/operators
func (h *AdminHandler) CreateOperator(c *gin.Context) {
	var req auth.CreateOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	op, err := h.svc.Auth.CreateOperator(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, op)
}

// ListOperators 列出客服账号
// GET /api/v1/admin/operators
func (h *AdminHandler) ListOperators(c *gin.Context) {
	ops, err := h.svc.Auth.ListOperators(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, ops)
}
