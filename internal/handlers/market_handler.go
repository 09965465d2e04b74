package handlers

import (
	"net/http"

	"prediction-engine/internal/services"

	"github.com/gin-gonic/gin"
)

type MarketHandler struct {
	markets *services.MarketService
}

func NewMarketHandler(markets *services.MarketService) *MarketHandler {
	return &MarketHandler{markets: markets}
}

// GetPredictions returns open markets with live prices and the recent archive
func (h *MarketHandler) GetPredictions(c *gin.Context) {
	resp, err := h.markets.ListPredictions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPrediction returns a single market snapshot
func (h *MarketHandler) GetPrediction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	snapshot, err := h.markets.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
