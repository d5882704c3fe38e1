package routes

import (
	"github.com/gin-gonic/gin"

	"marketplace-core/internal/handler"
)

func RegisterAdminRoutes(rg *gin.RouterGroup, h *handler.MarketplaceHandler, adminAuth gin.HandlerFunc) {
	adminGroup := rg.Group("/admin", adminAuth)
	{
		adminGroup.PUT("/fee-tiers", h.ReplaceFeeTiers)
	}
}
