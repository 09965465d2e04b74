package database

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"time"

	"prediction-engine/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the database for driver ("postgres" or "sqlite")
func Connect(driver, dsn string) error {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	var err error
	DB, err = Open(dialector)
	if err != nil {
		return err
	}

	log.Info().Str("driver", driver).Msg("Database connection established successfully")
	return nil
}

// Open opens a gorm handle with the shared settings
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return open(dialector, os.Stdout)
}

func open(dialector gorm.Dialector, logOut io.Writer) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(logOut),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newGormLogger reports failed and slow statements only. Lookups that miss
// are a normal result for the stores and are not logged.
func newGormLogger(w io.Writer) logger.Interface {
	return logger.New(stdlog.New(w, "\r\n", stdlog.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Error,
		IgnoreRecordNotFoundError: true,
	})
}

// Models lists every persisted model in migration order
func Models() []interface{} {
	return []interface{}{
		&models.Market{},
		&models.Position{},
		&models.Wager{},
		&models.Payout{},
		&models.ResolvedMarket{},
	}
}

// Migrate runs automatic migrations for all models on db
func Migrate(db *gorm.DB) error {
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}
	return nil
}

// AutoMigrate migrates the global connection
func AutoMigrate() error {
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Info().Msg("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
