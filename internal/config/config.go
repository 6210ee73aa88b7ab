// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingCredential is returned when no completion service credential is set.
var ErrMissingCredential = errors.New("COMPLETION_API_KEY (or GEMINI_API_KEY) is required")

// Assessment modes.
const (
	AssessmentInline   = "inline"
	AssessmentSeparate = "separate"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	SessionTTL      time.Duration
	ArchiveTTL      time.Duration
	GRPCHealthAddr  string
	PolicyPath      string
	Completion      CompletionConfig
	Coaching        CoachingConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// CompletionConfig selects and tunes the completion service client.
type CompletionConfig struct {
	Provider    string // gemini, openai or mock
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// CoachingConfig controls turn handling.
type CoachingConfig struct {
	AssessmentMode  string
	MessageMaxChars int
	Denylist        []string
}

// RateLimitConfig bounds chat requests per client.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	apiKey := getEnv("COMPLETION_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("GEMINI_API_KEY", "")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/coach.db"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 60*time.Minute),
		ArchiveTTL:     7 * 24 * time.Hour,
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ":9090"),
		PolicyPath:     getEnv("POLICY_PATH", ""),
		Completion: CompletionConfig{
			Provider:    strings.ToLower(strings.TrimSpace(getEnv("COMPLETION_PROVIDER", "gemini"))),
			APIKey:      strings.TrimSpace(apiKey),
			Model:       getEnv("COMPLETION_MODEL", ""),
			BaseURL:     getEnv("COMPLETION_BASE_URL", ""),
			Timeout:     getEnvDuration("COMPLETION_TIMEOUT", 30*time.Second),
			MaxAttempts: getEnvInt("COMPLETION_MAX_ATTEMPTS", 3),
			RetryDelay:  getEnvDuration("COMPLETION_RETRY_DELAY", 500*time.Millisecond),
		},
		Coaching: CoachingConfig{
			AssessmentMode:  strings.ToLower(strings.TrimSpace(getEnv("ASSESSMENT_MODE", AssessmentInline))),
			MessageMaxChars: getEnvInt("MESSAGE_MAX_CHARS", 1000),
			Denylist:        getEnvList("MESSAGE_DENYLIST"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Completion.Provider {
	case "gemini", "openai":
		if c.Completion.APIKey == "" {
			return ErrMissingCredential
		}
	case "mock":
	default:
		return fmt.Errorf("COMPLETION_PROVIDER %q is not supported", c.Completion.Provider)
	}
	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be > 0")
	}
	if c.Completion.MaxAttempts <= 0 {
		return fmt.Errorf("COMPLETION_MAX_ATTEMPTS must be > 0")
	}
	switch c.Coaching.AssessmentMode {
	case AssessmentInline, AssessmentSeparate:
	default:
		return fmt.Errorf("ASSESSMENT_MODE must be %q or %q", AssessmentInline, AssessmentSeparate)
	}
	if c.Coaching.MessageMaxChars <= 0 {
		return fmt.Errorf("MESSAGE_MAX_CHARS must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
