package handler

import (
	"crypto/subtle"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace-core/internal/handler/response"
	"marketplace-core/pkg/errno"
)

const (
	HeaderRelayerKey = "X-Relayer-Key"
	HeaderRequestID  = response.HeaderRequestID
	ctxRelayer       = "relayer"
)

// RequestID 沿用调用方的 X-Request-ID，没有则生成一个，并回写到响应头和响应体
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(response.CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RelayerAuth 通过 API Key 识别 relayer。relayer 是付款方 (租赁时也是承租人)，
// 不能由请求体自行声明。
func RelayerAuth(keys map[string]common.Address) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderRelayerKey)
		if key == "" {
			response.Abort(c, errno.ErrUnauthenticated)
			return
		}
		for k, addr := range keys {
			if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
				c.Set(ctxRelayer, addr)
				c.Next()
				return
			}
		}
		response.Abort(c, errno.ErrUnauthenticated)
	}
}

// RelayerFrom 读取 RelayerAuth 写入的地址
func RelayerFrom(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ctxRelayer)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}

// AdminAuth Bearer token 校验，token 为空时管理接口全部拒绝
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Abort(c, errno.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}
