package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends for the sandbox ledger
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Store    string
	Seed     bool
	Database DatabaseConfig
	JWT      JWTConfig
	Ledger   LedgerConfig
	Log      LogConfig
	Cron     CronConfig
	Interest InterestConfig

	// EnvFileLoaded is false when no .env file was found
	EnvFileLoaded bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// LedgerConfig is where the desk client finds the interest ledger
type LedgerConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// Timeout returns the per-request deadline
func (l LedgerConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// CronConfig holds scheduled job configuration
type CronConfig struct {
	OverdueSpec string
}

// InterestConfig holds ledger arithmetic settings
type InterestConfig struct {
	PenaltyPerMillePerDay decimal.Decimal
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	envLoaded := godotenv.Load() == nil

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	store := strings.ToLower(strings.TrimSpace(getEnv("LEDGER_STORE", StoreMySQL)))
	if store != StoreMySQL && store != StoreMemory {
		return nil, fmt.Errorf("invalid LEDGER_STORE: '%s' (must be 'mysql' or 'memory')", store)
	}

	interest, err := loadInterestConfig()
	if err != nil {
		return nil, err
	}

	seed, _ := strconv.ParseBool(getEnv("SEED_DEMO_DATA", strconv.FormatBool(appMode == "dev")))

	// Build config based on APP_MODE
	config := &Config{
		AppMode:       appMode,
		Port:          getEnv("PORT", "3000"),
		Store:         store,
		Seed:          seed,
		Database:      loadDatabaseConfig(appMode),
		JWT:           loadJWTConfig(appMode),
		Ledger:        loadLedgerConfig(),
		Log:           loadLogConfig(appMode),
		Cron:          CronConfig{OverdueSpec: getEnv("OVERDUE_CRON", "30 0 * * *")},
		Interest:      interest,
		EnvFileLoaded: envLoaded,
	}

	// Set global config
	AppConfig = config

	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "pledge_ledger"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "480"))

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: accessMins,
	}
}

func loadLedgerConfig() LedgerConfig {
	timeout, err := strconv.Atoi(getEnv("LEDGER_TIMEOUT_SECONDS", "20"))
	if err != nil || timeout <= 0 {
		timeout = 20
	}

	return LedgerConfig{
		BaseURL:        strings.TrimRight(getEnv("LEDGER_BASE_URL", "http://localhost:3000/api/v1"), "/"),
		TimeoutSeconds: timeout,
	}
}

func loadLogConfig(mode string) LogConfig {
	format := "json"
	if mode == "dev" {
		format = "console"
	}

	return LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", format),
	}
}

func loadInterestConfig() (InterestConfig, error) {
	raw := getEnv("PENALTY_PER_MILLE_PER_DAY", "1")
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return InterestConfig{}, fmt.Errorf("invalid PENALTY_PER_MILLE_PER_DAY: '%s'", raw)
	}
	return InterestConfig{PenaltyPerMillePerDay: rate}, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// UsesMemoryStore reports whether the sandbox keeps its ledger in memory
func (c *Config) UsesMemoryStore() bool {
	return c.Store == StoreMemory
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:3000"
	}
	return origins
}
