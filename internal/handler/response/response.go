package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	CtxRequestID    = "request_id"
)

// Response 统一返回结构 {code, msg, data}
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"msg"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // 空对象而不是 null
	}
	c.JSON(http.StatusOK, Response{
		Code:      errno.OK.Code,
		Message:   errno.OK.Message,
		Data:      data,
		RequestID: c.GetString(CtxRequestID),
	})
}

// Error 状态码由错误分类决定，业务码在 body 里。
// 非业务错误 (Internal) 只记录日志，不把底层细节返回给调用方。
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	status := errno.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("[API] 内部错误",
			zap.String("request_id", c.GetString(CtxRequestID)),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		msg = errno.InternalServerError.Message
	}
	c.JSON(status, Response{
		Code:      code,
		Message:   msg,
		Data:      gin.H{},
		RequestID: c.GetString(CtxRequestID),
	})
}

// Abort 中间件使用，终止后续 handler
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
