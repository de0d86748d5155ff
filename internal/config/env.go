package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	AIAPIKey        string
	GenTransport    string
	GenBaseURL      string
	AssistantModel  string
	ChatModel       string
	AnalysisModel   string
	UpstreamTimeout time.Duration

	APIKeys            []string
	ServiceTokenSecret string

	RateWindow     time.Duration
	RateMax        int
	RateLimitStore string
	RedisURL       string
	DatabaseURL    string

	FrontendOrigins []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "4000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GenTransport:    strings.ToLower(getEnv("GENAI_TRANSPORT", "rest")),
		GenBaseURL:      getEnv("GENAI_BASE_URL", "https://generativelanguage.googleapis.com"),
		AssistantModel:  getEnv("ASSISTANT_MODEL", "gemini-3-flash-preview"),
		ChatModel:       getEnv("CHAT_MODEL", "gemini-3-pro-preview"),
		AnalysisModel:   getEnv("ANALYSIS_MODEL", "gemini-3-pro-preview"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 2*time.Minute),

		APIKeys:            apiKeys(),
		ServiceTokenSecret: getEnv("SERVICE_TOKEN_SECRET", ""),

		RateWindow:     time.Duration(getEnvInt("API_RATE_WINDOW_MS", 60_000)) * time.Millisecond,
		RateMax:        getEnvInt("API_RATE_MAX", 60),
		RateLimitStore: strings.ToLower(getEnv("RATE_LIMIT_STORE", "")),
		RedisURL:       getEnv("REDIS_URL", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		FrontendOrigins: getEnvList("FRONTEND_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if cfg.AIAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set; assistant routes will answer with a configuration notice")
	}
	if len(cfg.APIKeys) == 0 && cfg.ServiceTokenSecret == "" {
		log.Warn().Msg("no API_KEYS configured; every /api request will be rejected")
	}

	return cfg
}

// RateStoreKind resolves which counter backend to use. An explicit
// RATE_LIMIT_STORE wins; otherwise redis, then postgres, then memory.
func (c *Config) RateStoreKind() string {
	switch c.RateLimitStore {
	case "memory", "redis", "postgres":
		return c.RateLimitStore
	case "":
	default:
		log.Warn().Str("value", c.RateLimitStore).Msg("unknown RATE_LIMIT_STORE, falling back to auto selection")
	}
	switch {
	case c.RedisURL != "":
		return "redis"
	case c.DatabaseURL != "":
		return "postgres"
	default:
		return "memory"
	}
}

// API_KEYS supports rotation; API_KEY is the single-key fallback.
func apiKeys() []string {
	keys := getEnvList("API_KEYS", nil)
	if len(keys) == 0 {
		keys = getEnvList("API_KEY", nil)
	}
	return keys
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("not a positive int, using default")
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Dur("default", def).Msg("not a positive duration, using default")
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
