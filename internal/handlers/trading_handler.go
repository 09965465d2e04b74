package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"prediction-engine/internal/models"
	"prediction-engine/internal/services"

	"github.com/gin-gonic/gin"
)

type TradingHandler struct {
	trading *services.TradingService
}

func NewTradingHandler(trading *services.TradingService) *TradingHandler {
	return &TradingHandler{trading: trading}
}

// PlaceBet buys shares of one answer
func (h *TradingHandler) PlaceBet(c *gin.Context) {
	var req models.BetRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.trading.Buy(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cashout sells shares back to the market
func (h *TradingHandler) Cashout(c *gin.Context) {
	var req models.CashoutRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.trading.Sell(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetQuote previews a buy of ?amount= on ?side= without executing it
func (h *TradingHandler) GetQuote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		respondError(c, fmt.Errorf("amount %q: %w", c.Query("amount"), models.ErrInvalidAmount))
		return
	}

	quote, err := h.trading.Quote(c.Request.Context(), id, c.Query("side"), amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
