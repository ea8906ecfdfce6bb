// Package response 统一 JSON 响应
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/pkg/errcode"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

// Response 响应体
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: "OK", Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: "OK", Message: "created", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: "BAD_REQUEST", Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: "UNAUTHORIZED", Message: msg})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: "RATE_LIMITED", Message: "too many requests"})
}

// InternalError 不向调用方暴露内部错误细节
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: "INTERNAL", Message: "internal server error"})
}

// Error 按错误类别选择状态码
func Error(c *gin.Context, err error) {
	kind := errcode.KindOf(err)
	if kind == errcode.Internal {
		InternalError(c, err)
		return
	}
	c.AbortWithStatusJSON(StatusOf(kind), Response{Code: errcode.CodeOf(err), Message: err.Error()})
}

// StatusOf 类别到 HTTP 状态码
func StatusOf(kind errcode.Kind) int {
	switch kind {
	case errcode.Validation:
		return http.StatusBadRequest
	case errcode.Conflict:
		return http.StatusConflict
	case errcode.Forbidden:
		return http.StatusForbidden
	case errcode.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
