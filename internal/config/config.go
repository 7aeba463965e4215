package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database; empty selects the in-memory user store
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret      string
	AccessTokenTTL time.Duration
	CookieDomain   string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	GeminiSlotWait       time.Duration
	GeminiTimeout        time.Duration

	// Chat
	PersistUserTurns bool
	ChatLockTTL      time.Duration
	ChatLockWait     time.Duration

	// Observability
	MetricsNamespace string
	LogFile          string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		AccessTokenTTL:       getEnvAsDurationOrDefault("JWT_ACCESS_TTL", 15*time.Minute),
		CookieDomain:         getEnvOrDefault("COOKIE_DOMAIN", ""),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-pro"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GeminiSlotWait:       getEnvAsDurationOrDefault("GEMINI_SLOT_WAIT", 30*time.Second),
		GeminiTimeout:        getEnvAsDurationOrDefault("GEMINI_TIMEOUT", time.Minute),
		PersistUserTurns:     getEnvAsBoolOrDefault("CHAT_PERSIST_USER_TURNS", false),
		ChatLockTTL:          getEnvAsDurationOrDefault("CHAT_LOCK_TTL", 2*time.Minute),
		ChatLockWait:         getEnvAsDurationOrDefault("CHAT_LOCK_WAIT", 15*time.Second),
		MetricsNamespace:     getEnvOrDefault("METRICS_NAMESPACE", "gemchat"),
		LogFile:              getEnvOrDefault("LOG_FILE", ""),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// A lock must outlive the work done under it.
	if held := cfg.GeminiSlotWait + cfg.GeminiTimeout + responseMargin; cfg.ChatLockTTL < held {
		cfg.ChatLockTTL = held
	}

	return cfg
}

// responseMargin covers loading, saving and writing around the model call.
const responseMargin = 15 * time.Second

// WriteTimeout is the longest a completion request can take: waiting for the
// conversation lock, waiting for a model slot, the model call, then saving.
func (c *Config) WriteTimeout() time.Duration {
	return c.ChatLockWait + c.GeminiSlotWait + c.GeminiTimeout + responseMargin
}

// IsProduction reports whether cookies should be issued with the Secure flag.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
