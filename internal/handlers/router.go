package handlers

import (
	"net/http"
	"time"

	"prediction-engine/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RouterConfig carries everything the HTTP layer needs
type RouterConfig struct {
	AllowedOrigins []string
	AdminSecret    string

	Markets    *services.MarketService
	Trading    *services.TradingService
	Settlement *services.SettlementService

	// Stream serves /ws when set
	Stream http.Handler
}

// NewRouter builds the gin engine with every public and admin route
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	marketHandler := NewMarketHandler(cfg.Markets)
	tradingHandler := NewTradingHandler(cfg.Trading)
	positionHandler := NewPositionHandler(cfg.Markets)
	adminHandler := NewAdminHandler(cfg.AdminSecret, cfg.Markets, cfg.Settlement)

	router.GET("/predictions", marketHandler.GetPredictions)
	router.GET("/predictions/:id", marketHandler.GetPrediction)
	router.GET("/predictions/:id/quote", tradingHandler.GetQuote)
	router.GET("/users/:userId/positions", positionHandler.GetUserPositions)

	router.POST("/bet", tradingHandler.PlaceBet)
	router.POST("/cashout", tradingHandler.Cashout)

	admin := router.Group("/admin")
	{
		admin.POST("/resolve", adminHandler.ResolveMarket)
		admin.POST("/markets", adminHandler.CreateMarket)
	}

	if cfg.Stream != nil {
		router.GET("/ws", gin.WrapH(cfg.Stream))
	}

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
