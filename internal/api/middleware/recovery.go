package middleware

import (
	"fmt"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/pkg/logger"
	"github.com/kmsv-2726/federated-socmed/pkg/monitor"
	"github.com/kmsv-2726/federated-socmed/pkg/response"
)

// Recovery 先交给 sentry 上报（Repanic），再由 gin 的 CustomRecovery 记录并返回 500
func Recovery() []gin.HandlerFunc {
	handlers := []gin.HandlerFunc{
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			logger.Error("panic recovered",
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", recovered),
				zap.Stack("stack"))
			response.InternalError(c, fmt.Errorf("panic: %v", recovered))
		}),
	}
	if monitor.Enabled() {
		handlers = append(handlers, sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	return handlers
}
