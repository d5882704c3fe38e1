package server

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"marketplace-core/internal/handler"
	"marketplace-core/internal/handler/response"
	"marketplace-core/internal/marketplace"
	"marketplace-core/internal/server/routes"
	"marketplace-core/pkg/monitor"
	"marketplace-core/pkg/validator"
)

// RouterConfig 接口鉴权配置
type RouterConfig struct {
	Relayers   map[string]common.Address // API Key -> relayer 地址
	AdminToken string
	Probes     map[string]handler.Probe // /ready 检查的依赖

	// CORSOrigins 为空时不启用 CORS，"*" 表示允许所有来源 (此时不允许携带凭证)
	CORSOrigins []string
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", handler.HeaderRelayerKey, handler.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", handler.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

// NewHTTPRouter 初始化并返回一个 Gin Engine。未执行 monitor.Init 时指标只记录不导出。
func NewHTTPRouter(core *marketplace.Core, cfg RouterConfig) *gin.Engine {
	validator.Init()

	// 使用默认中间件: Logger, Recovery
	r := gin.Default()
	r.Use(handler.RequestID(), monitor.PrometheusMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORSOrigins))
	}

	health := handler.NewHealthHandler(cfg.Probes)
	r.GET("/health", health.Live)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := handler.NewMarketplaceHandler(core)
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		routes.RegisterMetaTxRoutes(api, h, handler.RelayerAuth(cfg.Relayers))
		routes.RegisterRentalRoutes(api, h)
		routes.RegisterFeeRoutes(api, h)
		routes.RegisterAdminRoutes(api, h, handler.AdminAuth(cfg.AdminToken))
	}

	return r
}
