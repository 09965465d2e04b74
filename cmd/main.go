package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prediction-engine/internal/archive"
	"prediction-engine/internal/config"
	"prediction-engine/internal/database"
	"prediction-engine/internal/events"
	"prediction-engine/internal/handlers"
	"prediction-engine/internal/jobs"
	"prediction-engine/internal/logger"
	"prediction-engine/internal/oracle"
	"prediction-engine/internal/polymarket"
	"prediction-engine/internal/repository"
	"prediction-engine/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	logger.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	log := logger.Component("main")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log = logger.Component("main")

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	store := repository.NewStore(database.GetDB())
	ctx := context.Background()

	// Resolution oracles
	polymarketClient := polymarket.NewPolymarketClient(cfg.Polymarket.GammaURL)
	oracles := oracle.NewRegistry()
	oracles.Register(oracle.SourceHTTPJSON, oracle.NewHTTPJSONOracle(cfg.Market.OracleTimeout, 5))
	oracles.Register(oracle.SourcePolymarket, oracle.NewPolymarketOracle(polymarketClient))

	// Event sinks: the websocket hub always, Redis when configured
	hub := events.NewHub(cfg.Server.AllowedOrigins)
	publishers := events.MultiPublisher{hub}
	if cfg.Redis.Addr != "" {
		redisPublisher, err := events.NewRedisStreamPublisher(ctx, events.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, events go to websocket clients only")
		} else {
			defer redisPublisher.Close()
			publishers = append(publishers, redisPublisher)
		}
	}

	// Archive export
	var exporter archive.Exporter
	if cfg.S3.Bucket != "" {
		s3Exporter, err := archive.NewS3Exporter(ctx, archive.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure archive export")
		}
		exporter = s3Exporter
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Resolved markets will be exported to S3")
	}

	// Initialize services
	locks := services.NewMarketLocks()
	marketService := services.NewMarketService(
		store, publishers, oracles,
		cfg.Market.DefaultLiquidity,
		cfg.Market.RecentTradesLimit,
		cfg.Market.ResolvedListLimit,
	)
	tradingService := services.NewTradingService(store, locks, publishers, cfg.Market.HouseFee, cfg.Market.RecentTradesLimit)
	settlementService := services.NewSettlementService(
		store, locks, publishers, exporter, oracles,
		cfg.Market.HouseFee,
		cfg.Market.OracleTimeout,
	)

	// Start settlement sweeper
	sweeper := jobs.NewSettlementSweeper(settlementService, cfg.Market.SweepInterval, cfg.Market.SweepParallelism)
	go sweeper.Start()

	// Start Polymarket mirror
	var syncJob *jobs.MarketSyncJob
	if cfg.Polymarket.SyncEnabled {
		syncService := services.NewMarketSyncService(marketService, store, polymarketClient, cfg.Polymarket.SyncLimit)
		syncJob = jobs.NewMarketSyncJob(syncService, cfg.Polymarket.SyncInterval)
		go syncJob.Start()
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminSecret:    cfg.App.AdminSecret,
		Markets:        marketService,
		Trading:        tradingService,
		Settlement:     settlementService,
		Stream:         hub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sweeper.Stop()
	if syncJob != nil {
		syncJob.Stop()
	}

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Close()

	log.Info().Msg("Server exited")
}
