package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/dredbirozsolt/livechat/internal/middleware"
	"github.com/dredbirozsolt/livechat/internal/service"
	"github.com/dredbirozsolt/livechat/internal/service/auth"
)

// AuthHandler 客服认证处理器
type AuthHandler struct {
	svc *service.Services
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.Services) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login 客服登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, resp)
}

// Me 获取当前客服信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	op, ok := middleware.GetCurrentOperator(c)
	if !ok {
		Unauthorized(c, "operator identity missing")
		return
	}
	Success(c, op)
}
