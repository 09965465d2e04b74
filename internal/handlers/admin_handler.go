package handlers

import (
	"net/http"

	"prediction-engine/internal/auth"
	"prediction-engine/internal/models"
	"prediction-engine/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	secret     string
	markets    *services.MarketService
	settlement *services.SettlementService
}

func NewAdminHandler(secret string, markets *services.MarketService, settlement *services.SettlementService) *AdminHandler {
	return &AdminHandler{
		secret:     secret,
		markets:    markets,
		settlement: settlement,
	}
}

// ResolveMarket settles a market by hand
func (h *AdminHandler) ResolveMarket(c *gin.Context) {
	var req models.ResolveRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := auth.RequireAdmin(c, h.secret, req.AdminKey); err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.settlement.Resolve(c.Request.Context(), req.PredictionID, req.Result, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateMarket opens a new market
func (h *AdminHandler) CreateMarket(c *gin.Context) {
	var req models.CreateMarketRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := auth.RequireAdmin(c, h.secret, req.AdminKey); err != nil {
		respondError(c, err)
		return
	}

	market, err := h.markets.CreateMarket(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := h.markets.GetSnapshot(c.Request.Context(), market.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}
