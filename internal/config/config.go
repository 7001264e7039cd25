package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Session auth
	AuthMode        string // "plaintext" or "signed"
	AuthSecret      string
	AllowAnonymous  bool
	AnonymousUserID int64

	// Assistant
	AssistantProvider       string // "echo", "gemini" or "openai"
	GeminiAPIKey            string
	OpenAIAPIKey            string
	AssistantConcurrentReqs int

	// Chat
	SendsPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	env := getEnvOrDefault("ENV", "development")

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         env,
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		AuthMode:    getEnvOrDefault("AUTH_MODE", "plaintext"),
		AuthSecret:  getEnvOrDefault("AUTH_SECRET", ""),
		// Anonymous fallback is for local development; production deployments
		// must opt in explicitly.
		AllowAnonymous:          getEnvAsBoolOrDefault("ALLOW_ANONYMOUS", env == "development"),
		AnonymousUserID:         int64(getEnvAsIntOrDefault("ANONYMOUS_USER_ID", 0)),
		AssistantProvider:       getEnvOrDefault("ASSISTANT_PROVIDER", "echo"),
		GeminiAPIKey:            getEnvOrDefault("GEMINI_API_KEY", ""),
		OpenAIAPIKey:            getEnvOrDefault("OPENAI_API_KEY", ""),
		AssistantConcurrentReqs: getEnvAsIntOrDefault("ASSISTANT_CONCURRENT_REQUESTS", 5),
		SendsPerMinute:          getEnvAsIntOrDefault("CHAT_SENDS_PER_MINUTE", 20),
		FrontendURL:             getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.AuthMode == "signed" && cfg.AuthSecret == "" {
		panic("AUTH_SECRET must be set when AUTH_MODE=signed")
	}

	return cfg
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
