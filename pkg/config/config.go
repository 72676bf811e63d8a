// Package config loads engine configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentevalhq/agenteval/pkg/retry"
)

// PlaceholderAPIKey is the terminal fallback of the key-resolution cascade.
// LLM calls made with it fail upstream with a clear auth error instead of a
// confusing empty-header one.
const PlaceholderAPIKey = "sk-placeholder"

// Config is the process-wide engine configuration.
type Config struct {
	HTTPPort string

	// Judge LLM endpoint (OpenAI-style chat completions).
	JudgeBaseURL string
	JudgeAPIKey  string
	JudgeModel   string

	// Default endpoint for newly seeded agents.
	DefaultAgentEndpoint string
	AgentAPIKey          string

	Retry retry.Policy

	// Per-run defaults.
	RunTimeout     time.Duration
	VerboseLogging bool

	CORSOrigins []string
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	cfg := Config{
		HTTPPort:             getEnvOrDefault("HTTP_PORT", "8000"),
		JudgeBaseURL:         getEnvOrDefault("JUDGE_BASE_URL", "https://api.openai.com/v1"),
		JudgeModel:           getEnvOrDefault("JUDGE_MODEL", "gpt-4o-mini"),
		DefaultAgentEndpoint: getEnvOrDefault("AGENT_ENDPOINT", "http://localhost:9000/run"),
		AgentAPIKey:          os.Getenv("AGENT_API_KEY"),
		Retry: retry.Policy{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
			MaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		},
		RunTimeout:     getEnvDuration("RUN_TIMEOUT", 300*time.Second),
		VerboseLogging: getEnvBool("VERBOSE_LOGGING", false),
		CORSOrigins:    splitCSV(getEnvOrDefault("CORS_ORIGINS", "*")),
	}
	cfg.JudgeAPIKey = resolveAPIKey(os.Getenv("JUDGE_API_KEY"), cfg.AgentAPIKey)
	return cfg
}

// resolveAPIKey implements the cascade: explicit judge key, then the agent
// key, then the placeholder.
func resolveAPIKey(judgeKey, agentKey string) string {
	if judgeKey != "" {
		return judgeKey
	}
	if agentKey != "" {
		return agentKey
	}
	return PlaceholderAPIKey
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("500ms", "2s") and bare
// numbers, which are read as seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
