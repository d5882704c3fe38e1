package handler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace-core/internal/handler/response"
	"marketplace-core/pkg/errno"
)

// Probe 检查一个外部依赖 (postgres、redis) 是否可用
type Probe func(ctx context.Context) error

const probeTimeout = 2 * time.Second

type HealthHandler struct {
	probes map[string]Probe
}

func NewHealthHandler(probes map[string]Probe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

// Live godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *HealthHandler) Live(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"service": "marketplace-server",
	})
}

// Ready godoc
// @Summary Readiness probe
// @Description 逐个检查已配置的依赖，任一失败返回 503
// @Tags system
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(gin.H, len(names))
	var failed []string
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		err := h.probes[name](ctx)
		cancel()
		if err != nil {
			deps[name] = err.Error()
			failed = append(failed, name)
			continue
		}
		deps[name] = "UP"
	}

	if len(failed) > 0 {
		response.Error(c, errno.ErrUnavailable.WithMessage(fmt.Sprintf("%v", failed)))
		return
	}
	response.Success(c, gin.H{"status": "UP", "dependencies": deps})
}
