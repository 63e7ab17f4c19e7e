package config

import (
	"log"
	"os"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Env                string
	OpsPort            string
	DatabaseURL        string
	LLMProvider        string
	LLMModel           string
	RemoteBaseURL      string
	RemoteUsername     string
	RemotePassword     string
	ClassifyConfigPath string
	JobType            string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Env:                env,
		OpsPort:            getEnv("OPS_PORT", "8080"),
		DatabaseURL:        dbURL,
		LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
		LLMModel:           getEnv("LLM_MODEL", ""),
		RemoteBaseURL:      strings.TrimRight(getEnv("REMOTE_BASE_URL", ""), "/"),
		RemoteUsername:     getEnv("REMOTE_USERNAME", ""),
		RemotePassword:     getEnv("REMOTE_PASSWORD", ""),
		ClassifyConfigPath: getEnv("CLASSIFY_CONFIG_PATH", "classify.yaml"),
		JobType:            getEnv("JOB_TYPE", "item_upsert"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
