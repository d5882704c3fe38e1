package routes

import (
	"github.com/gin-gonic/gin"

	"marketplace-core/internal/handler"
)

func RegisterFeeRoutes(rg *gin.RouterGroup, h *handler.MarketplaceHandler) {
	feeGroup := rg.Group("/fees")
	{
		feeGroup.GET("", h.GetFeeTiers)
		feeGroup.GET("/:address", h.GetFees)
	}
}
