// Package middleware gin 中间件：身份、限流、请求日志、panic 恢复
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kmsv-2726/federated-socmed/pkg/auth"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

const actorKey = "actor"

// Auth 解析 Bearer token，把联邦用户 ID 放进上下文。
// required=false 时匿名请求直接放行（actor 为空串），带了坏 token 仍然拒绝。
func Auth(m *auth.Manager, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				response.Unauthorized(c, "missing bearer token")
				return
			}
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "malformed authorization header")
			return
		}
		subject, err := m.Parse(token)
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}
		c.Set(actorKey, subject)
		c.Next()
	}
}

// Actor 当前请求的联邦用户 ID，匿名为空串
func Actor(c *gin.Context) string {
	return c.GetString(actorKey)
}
