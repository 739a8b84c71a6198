package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/service"
)

// RequireAuth 要求有效认证的中间件
// 必须提供有效的 JWT token，否则返回 401
func RequireAuth(svc *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{
				"code":    -1,
				"message": "Missing Authorization header",
			})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(401, gin.H{
				"code":    -1,
				"message": "Invalid Authorization header format",
			})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		op, err := svc.Auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(401, gin.H{
				"code":    -1,
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// Token 有效，设置客服到上下文
		c.Set("operator", op)
		c.Set("operator_id", op.ID)
		c.Next()
	}
}

// RequireAdmin 要求管理员角色的中间件（叠加在 RequireAuth 之后）
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := GetCurrentOperator(c)
		if !ok || op.Role != model.OperatorRoleAdmin {
			c.JSON(403, gin.H{
				"code":    -1,
				"message": "Admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentOperator 从上下文获取当前客服
func GetCurrentOperator(c *gin.Context) (*model.Operator, bool) {
	op, exists := c.Get("operator")
	if !exists {
		return nil, false
	}
	o, ok := op.(*model.Operator)
	return o, ok
}

// GetOperatorID 从上下文获取当前客服ID
func GetOperatorID(c *gin.Context) (string, bool) {
	operatorID, exists := c.Get("operator_id")
	if !exists {
		return "", false
	}
	id, ok := operatorID.(string)
	return id, ok
}
