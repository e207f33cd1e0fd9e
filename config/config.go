package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default fallback models tried in order after the configured primary.
var defaultFallbackModels = []string{
	"anthropic/claude-3.5-sonnet",
	"openai/gpt-4o-mini",
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Auth configuration
	JWTSecret     string
	GatewaySecret string

	// Vision provider configuration
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	PrimaryModel      string
	FallbackModels    []string

	// Display configuration
	DisplayUTCOffset int
	MaxImageSizeMB   int
}

// Load creates a Config from environment variables, applying defaults and
// validating required values.
func Load() (*Config, error) {
	cfg := &Config{
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            getEnv("DB_NAME", "mealmetrics"),
		DBSSLMode:         getEnv("DB_SSL_MODE", "disable"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		GatewaySecret:     os.Getenv("GATEWAY_SECRET"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		PrimaryModel:      getEnv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
		FallbackModels:    defaultFallbackModels,
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.DisplayUTCOffset, err = getEnvInt("DISPLAY_UTC_OFFSET", 6); err != nil {
		return nil, err
	}
	if cfg.MaxImageSizeMB, err = getEnvInt("MAX_IMAGE_SIZE_MB", 10); err != nil {
		return nil, err
	}

	if fallbacks := os.Getenv("OPENROUTER_FALLBACK_MODELS"); fallbacks != "" {
		cfg.FallbackModels = splitAndTrim(fallbacks)
	}

	cfg.OpenRouterAPIKey, err = loadSecret("OPENROUTER_API_KEY")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and sane.
func (c *Config) Validate() error {
	var problems []string
	if c.OpenRouterAPIKey == "" {
		problems = append(problems, "OPENROUTER_API_KEY is required")
	} else if len(c.OpenRouterAPIKey) < 10 {
		problems = append(problems, "OPENROUTER_API_KEY is too short")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.PrimaryModel == "" {
		problems = append(problems, "OPENROUTER_MODEL must not be empty")
	}
	if c.MaxImageSizeMB <= 0 {
		problems = append(problems, "MAX_IMAGE_SIZE_MB must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// loadSecret reads a secret from the environment, falling back to a
// *_FILE indirection for file-mounted secrets.
func loadSecret(name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}

	file := os.Getenv(name + "_FILE")
	if file == "" {
		return "", fmt.Errorf("%s or %s_FILE must be set", name, name)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s file: %w", name, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%s file is empty", name)
	}
	return value, nil
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(name string, fallback int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return n, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
