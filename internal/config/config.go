package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPAddr  string
	JWTSecret string
	TokenTTL  time.Duration
	LogLevel  zerolog.Level

	MarketMakerEnabled bool
	MarketMakerConfig  MarketMakerConfig

	TapeCapacity  int
	CandleHistory int

	OrderRatePerSec float64
	OrderRateBurst  int
}

type MarketMakerConfig struct {
	Interval     time.Duration
	Seed         int64
	MaxStepBps   int
	LadderLevels int
	MarketRatio  float64
}

// Load reads the process environment, after an optional .env file in the
// working directory. Malformed values fall back to their defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		LogLevel:           level,
		MarketMakerEnabled: getEnvBool("MM_ENABLED", true),
		MarketMakerConfig: MarketMakerConfig{
			Interval:     getEnvDuration("MM_INTERVAL", 2*time.Second),
			Seed:         int64(getEnvInt("MM_SEED", 1)),
			MaxStepBps:   getEnvInt("MM_MAX_STEP_BPS", 50),
			LadderLevels: getEnvInt("MM_LADDER_LEVELS", 5),
			MarketRatio:  getEnvFloat("MM_MARKET_RATIO", 0.3),
		},
		TapeCapacity:    getEnvInt("TAPE_CAPACITY", 5000),
		CandleHistory:   getEnvInt("CANDLE_HISTORY", 500),
		OrderRatePerSec: getEnvFloat("ORDER_RATE_PER_SEC", 10),
		OrderRateBurst:  getEnvInt("ORDER_RATE_BURST", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid integer, using default")
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid number, using default")
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid boolean, using default")
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
		return defaultValue
	}
	return value
}
