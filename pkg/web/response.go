package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 提示信息
	Data    any    `json:"data"`    // 数据载体
	TraceID string `json:"trace_id,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeOK,
		Message: "ok",
		Data:    data,
		TraceID: logger.RequestIDFromContext(c.Request.Context()),
	})
}

// Error 错误响应，data 用于携带错误上下文（剩余次数、冷却时间等）
func Error(c *gin.Context, code int, message string, data any) {
	c.JSON(errors.CodeToStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    data,
		TraceID: logger.RequestIDFromContext(c.Request.Context()),
	})
}
