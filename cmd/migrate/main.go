package main

import (
	"prediction-engine/internal/config"
	"prediction-engine/internal/database"
	"prediction-engine/internal/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	log.Info().Str("driver", cfg.Database.Driver).Msg("Applying schema migrations")
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	log.Info().Int("tables", len(database.Models())).Msg("Migration applied successfully")
}
