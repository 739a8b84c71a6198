package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware 日志中间件
// 记录每个请求的方法、路径、状态码与耗时；已认证请求附带客服 ID。
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		operator := "-"
		if id, ok := GetOperatorID(c); ok {
			operator = id
		}

		log.Printf("%s %s | status=%d latency=%v ip=%s operator=%s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			operator,
		)
	}
}
