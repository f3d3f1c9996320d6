// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string

	HTTPAddr string
	AMQPURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GatewayBaseURL  string
	GatewayInstance string
	GatewayAPIKey   string
	GatewayRPS      float64

	GeneratorBaseURL      string
	GeneratorAPIKey       string
	GeneratorDefaultModel string

	SilenceWindow        time.Duration
	SafetyValve          time.Duration
	SafetyValveFragments int
	PauseConfirm         time.Duration
	HistoryLimit         int

	FetchRetries int
	FetchBackoff time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() Config {
	return Config{
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		AMQPURL:  os.Getenv("AMQP_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GatewayBaseURL:  os.Getenv("GATEWAY_BASE_URL"),
		GatewayInstance: os.Getenv("GATEWAY_INSTANCE"),
		GatewayAPIKey:   os.Getenv("GATEWAY_API_KEY"),
		GatewayRPS:      getEnvFloat("GATEWAY_RPS", 0),

		GeneratorBaseURL:      getEnv("GENERATOR_BASE_URL", "https://api.openai.com/v1"),
		GeneratorAPIKey:       os.Getenv("GENERATOR_API_KEY"),
		GeneratorDefaultModel: getEnv("GENERATOR_DEFAULT_MODEL", "gpt-4o-mini"),

		SilenceWindow:        getEnvMillis("SILENCE_WINDOW_MS", 3500*time.Millisecond),
		SafetyValve:          getEnvMillis("SAFETY_VALVE_MS", 15*time.Second),
		SafetyValveFragments: getEnvInt("SAFETY_VALVE_FRAGMENTS", 5),
		PauseConfirm:         getEnvMillis("PAUSE_CONFIRM_MS", time.Second),
		HistoryLimit:         getEnvInt("HISTORY_LIMIT", 20),

		FetchRetries: getEnvInt("FETCH_RETRIES", 3),
		FetchBackoff: getEnvMillis("FETCH_BACKOFF_MS", 2*time.Second),
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("⚠️ invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
