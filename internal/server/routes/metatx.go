package routes

import (
	"github.com/gin-gonic/gin"

	"marketplace-core/internal/handler"
)

// RegisterMetaTxRoutes relayer 需要 API Key
func RegisterMetaTxRoutes(rg *gin.RouterGroup, h *handler.MarketplaceHandler, relayerAuth gin.HandlerFunc) {
	metatxGroup := rg.Group("/metatx", relayerAuth)
	{
		metatxGroup.POST("/mint", h.MetaTxMint)
		metatxGroup.POST("/rent", h.MetaTxRent)
	}
}
