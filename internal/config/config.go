package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	App        AppConfig        `yaml:"app" toml:"app"`
	Market     MarketConfig     `yaml:"market" toml:"market"`
	Redis      RedisConfig      `yaml:"redis" toml:"redis"`
	S3         S3Config         `yaml:"s3" toml:"s3"`
	Polymarket PolymarketConfig `yaml:"polymarket" toml:"polymarket"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver" toml:"driver"` // postgres | sqlite
	Path     string `yaml:"path" toml:"path"`     // sqlite file
	Host     string `yaml:"host" toml:"host"`
	Port     string `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	DBName   string `yaml:"db_name" toml:"db_name"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string   `yaml:"port" toml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	AdminSecret string `yaml:"admin_secret" toml:"admin_secret"`
}

// MarketConfig holds trading and settlement parameters
type MarketConfig struct {
	HouseFee          float64       `yaml:"house_fee" toml:"house_fee"`
	DefaultLiquidity  float64       `yaml:"default_liquidity" toml:"default_liquidity"`
	RecentTradesLimit int           `yaml:"recent_trades_limit" toml:"recent_trades_limit"`
	ResolvedListLimit int           `yaml:"resolved_list_limit" toml:"resolved_list_limit"`
	SweepInterval     time.Duration `yaml:"sweep_interval" toml:"sweep_interval"`
	SweepParallelism  int           `yaml:"sweep_parallelism" toml:"sweep_parallelism"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout" toml:"oracle_timeout"`
}

// RedisConfig holds the optional event stream settings
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Stream   string `yaml:"stream" toml:"stream"`
}

// S3Config holds the optional archive export settings
type S3Config struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	Region    string `yaml:"region" toml:"region"`
	Bucket    string `yaml:"bucket" toml:"bucket"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
}

// PolymarketConfig holds Polymarket mirror settings
type PolymarketConfig struct {
	GammaURL     string        `yaml:"gamma_url" toml:"gamma_url"`
	SyncEnabled  bool          `yaml:"sync_enabled" toml:"sync_enabled"`
	SyncInterval time.Duration `yaml:"sync_interval" toml:"sync_interval"`
	SyncLimit    int           `yaml:"sync_limit" toml:"sync_limit"`
}

// LogConfig controls log level and format
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug | info | warn | error
	Format string `yaml:"format" toml:"format"` // console | json
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "postgres",
			Path:   "prediction.db",
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			DBName: "prediction_market",
		},
		Server: ServerConfig{
			Port: "8080",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
		},
		Market: MarketConfig{
			HouseFee:          0.05,
			DefaultLiquidity:  50,
			RecentTradesLimit: 10,
			ResolvedListLimit: 20,
			SweepInterval:     5 * time.Minute,
			SweepParallelism:  4,
			OracleTimeout:     15 * time.Second,
		},
		Redis: RedisConfig{
			Stream: "market_events",
		},
		Polymarket: PolymarketConfig{
			GammaURL:     "https://gamma-api.polymarket.com",
			SyncInterval: 6 * time.Hour,
			SyncLimit:    20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from an optional file (CONFIG_FILE) and then
// environment variables, which win
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &config); err != nil {
			return nil, err
		}
	}

	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// loadFile decodes a YAML or TOML file on top of cfg, chosen by extension
func loadFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: parse TOML %q: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse YAML %q: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported file type %q", path)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)

	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, frontendURL)
	}

	c.App.AdminSecret = getEnv("ADMIN_SECRET", c.App.AdminSecret)

	c.Market.HouseFee = getEnvFloat("HOUSE_FEE", c.Market.HouseFee)
	c.Market.DefaultLiquidity = getEnvFloat("DEFAULT_LIQUIDITY", c.Market.DefaultLiquidity)
	c.Market.RecentTradesLimit = getEnvInt("RECENT_TRADES_LIMIT", c.Market.RecentTradesLimit)
	c.Market.ResolvedListLimit = getEnvInt("RESOLVED_LIST_LIMIT", c.Market.ResolvedListLimit)
	c.Market.SweepInterval = getEnvDuration("SWEEP_INTERVAL", c.Market.SweepInterval)
	c.Market.SweepParallelism = getEnvInt("SWEEP_PARALLELISM", c.Market.SweepParallelism)
	c.Market.OracleTimeout = getEnvDuration("ORACLE_TIMEOUT", c.Market.OracleTimeout)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.Stream = getEnv("REDIS_STREAM", c.Redis.Stream)

	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("S3_SECRET_KEY", c.S3.SecretKey)

	c.Polymarket.GammaURL = getEnv("POLYMARKET_GAMMA_URL", c.Polymarket.GammaURL)
	c.Polymarket.SyncEnabled = getEnvBool("MARKET_SYNC_ENABLED", c.Polymarket.SyncEnabled)
	c.Polymarket.SyncInterval = getEnvDuration("MARKET_SYNC_INTERVAL", c.Polymarket.SyncInterval)
	c.Polymarket.SyncLimit = getEnvInt("MARKET_SYNC_LIMIT", c.Polymarket.SyncLimit)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate checks the values the engine cannot run without
func (c *Config) Validate() error {
	if c.App.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required")
	}
	if c.Market.HouseFee < 0 || c.Market.HouseFee >= 1 {
		return fmt.Errorf("HOUSE_FEE must be in [0, 1), got %v", c.Market.HouseFee)
	}
	if c.Market.DefaultLiquidity <= 0 {
		return fmt.Errorf("DEFAULT_LIQUIDITY must be positive, got %v", c.Market.DefaultLiquidity)
	}
	if c.Market.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.Polymarket.SyncEnabled && c.Polymarket.SyncInterval <= 0 {
		return fmt.Errorf("MARKET_SYNC_INTERVAL must be positive when MARKET_SYNC_ENABLED is set")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	return nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
