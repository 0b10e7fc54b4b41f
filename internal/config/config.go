package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Server
	ServerPort string
	BaseURL    string
	LogLevel   string

	// Weather
	WeatherAPIKey   string
	WeatherEndpoint string
	WeatherTimeout  time.Duration

	// Inference
	ResolverURL      string
	ResolverTimeout  time.Duration
	PredictorURL     string
	PredictorTimeout time.Duration

	// Recommendation session
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	// Reconcile worker
	ReconcileInterval      time.Duration
	ReconcileMaxConcurrent int

	// Rate Limit
	RateLimitGeneral    int
	RateLimitGarmentReg int

	// Device channel
	RedisAddr    string
	RedisChannel string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.JWTSecret = required("JWT_SECRET")
	cfg.BaseURL = required("BASE_URL")
	cfg.ResolverURL = required("RESOLVER_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.WeatherAPIKey = getEnvString("WEATHER_API_KEY", "")
	cfg.WeatherEndpoint = getEnvString("WEATHER_ENDPOINT", "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherTimeout = getEnvDuration("WEATHER_TIMEOUT", 5*time.Second)
	cfg.ResolverTimeout = getEnvDuration("RESOLVER_TIMEOUT", 3*time.Second)
	cfg.PredictorURL = getEnvString("PREDICTOR_URL", "")
	cfg.PredictorTimeout = getEnvDuration("PREDICTOR_TIMEOUT", 30*time.Second)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", time.Hour)
	cfg.ReconcileMaxConcurrent = getEnvInt("RECONCILE_MAX_CONCURRENT", 4)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGarmentReg = getEnvInt("RATE_LIMIT_GARMENT_REG", 10)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisChannel = getEnvString("REDIS_CHANNEL", "wearly:device")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
