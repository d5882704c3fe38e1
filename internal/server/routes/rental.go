package routes

import (
	"github.com/gin-gonic/gin"

	"marketplace-core/internal/handler"
)

func RegisterRentalRoutes(rg *gin.RouterGroup, h *handler.MarketplaceHandler) {
	rentalGroup := rg.Group("/rentals")
	{
		rentalGroup.GET("", h.ListRentals)
		rentalGroup.GET("/:collection/:token_id/:renter", h.GetRental)
		rentalGroup.POST("/return", h.ReturnRented)
	}
	rg.GET("/balances/:collection/:token_id/:holder", h.GetBalance)
}
