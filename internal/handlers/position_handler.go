package handlers

import (
	"net/http"

	"prediction-engine/internal/services"

	"github.com/gin-gonic/gin"
)

type PositionHandler struct {
	markets *services.MarketService
}

func NewPositionHandler(markets *services.MarketService) *PositionHandler {
	return &PositionHandler{markets: markets}
}

// GetUserPositions returns a user's open positions marked to market
func (h *PositionHandler) GetUserPositions(c *gin.Context) {
	positions, err := h.markets.UserPositions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":    c.Param("userId"),
		"positions": positions,
		"count":     len(positions),
	})
}
