// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	DBPath       string
	QuestionFile string

	FastTier  FastTierConfig
	Cache     CacheConfig
	Interview InterviewConfig
	Evaluator EvaluatorConfig
}

// FastTierConfig controls the volatile session cache in front of the
// durable store.
type FastTierConfig struct {
	Enabled           bool
	StalenessWindow   time.Duration
	ReconcileInterval time.Duration
}

// CacheConfig controls the evaluation result cache.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// InterviewConfig holds the workflow engine tunables. Difficulty thresholds
// and budgets are deliberately configuration, not constants baked into the
// engine.
type InterviewConfig struct {
	QuestionBudget    int
	TimeBudget        time.Duration
	CoverageTarget    int
	RollingWindow     int
	HighWaterMark     float64
	LowWaterMark      float64
	MinDifficulty     int
	MaxDifficulty     int
	InactivityTimeout time.Duration
	SweepInterval     time.Duration
}

// EvaluatorConfig controls the external evaluation capability.
type EvaluatorConfig struct {
	Provider       string // "gemini" or "none"
	GeminiAPIKey   string
	GeminiModel    string
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./data/sessions.db"),
		QuestionFile: getEnv("QUESTION_FILE", ""),
		FastTier: FastTierConfig{
			Enabled:           getEnvBool("FAST_TIER_ENABLED", true),
			StalenessWindow:   getEnvDuration("FAST_TIER_STALENESS_WINDOW", 30*time.Second),
			ReconcileInterval: getEnvDuration("FAST_TIER_RECONCILE_INTERVAL", time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvInt("EVAL_CACHE_MAX_ENTRIES", 1024),
			TTL:        getEnvDuration("EVAL_CACHE_TTL", 24*time.Hour),
		},
		Interview: InterviewConfig{
			QuestionBudget:    getEnvInt("INTERVIEW_QUESTION_BUDGET", 5),
			TimeBudget:        getEnvDuration("INTERVIEW_TIME_BUDGET", 45*time.Minute),
			CoverageTarget:    getEnvInt("INTERVIEW_COVERAGE_TARGET", 4),
			RollingWindow:     getEnvInt("INTERVIEW_ROLLING_WINDOW", 3),
			HighWaterMark:     getEnvFloat("INTERVIEW_HIGH_WATER_MARK", 4.5),
			LowWaterMark:      getEnvFloat("INTERVIEW_LOW_WATER_MARK", 2.0),
			MinDifficulty:     getEnvInt("INTERVIEW_MIN_DIFFICULTY", 1),
			MaxDifficulty:     getEnvInt("INTERVIEW_MAX_DIFFICULTY", 5),
			InactivityTimeout: getEnvDuration("INTERVIEW_INACTIVITY_TIMEOUT", 60*time.Minute),
			SweepInterval:     getEnvDuration("INTERVIEW_SWEEP_INTERVAL", 5*time.Minute),
		},
		Evaluator: EvaluatorConfig{
			Provider:       getEnv("EVALUATOR_PROVIDER", "none"),
			GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_MODEL", ""),
			RequestTimeout: getEnvDuration("EVALUATOR_REQUEST_TIMEOUT", 30*time.Second),
			MaxAttempts:    getEnvInt("EVALUATOR_MAX_ATTEMPTS", 3),
			BackoffBase:    getEnvDuration("EVALUATOR_BACKOFF_BASE", 500*time.Millisecond),
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
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("EVAL_CACHE_MAX_ENTRIES must be > 0")
	}
	if c.Interview.QuestionBudget <= 0 {
		return fmt.Errorf("INTERVIEW_QUESTION_BUDGET must be > 0")
	}
	if c.Interview.RollingWindow <= 0 {
		return fmt.Errorf("INTERVIEW_ROLLING_WINDOW must be > 0")
	}
	if c.Interview.HighWaterMark < c.Interview.LowWaterMark {
		return fmt.Errorf("INTERVIEW_HIGH_WATER_MARK must be >= INTERVIEW_LOW_WATER_MARK")
	}
	if c.Interview.MinDifficulty <= 0 || c.Interview.MaxDifficulty < c.Interview.MinDifficulty {
		return fmt.Errorf("difficulty bounds are invalid: min=%d max=%d",
			c.Interview.MinDifficulty, c.Interview.MaxDifficulty)
	}
	switch c.Evaluator.Provider {
	case "none":
	case "gemini":
		if c.Evaluator.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when EVALUATOR_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown EVALUATOR_PROVIDER %q", c.Evaluator.Provider)
	}
	if c.Evaluator.MaxAttempts <= 0 {
		return fmt.Errorf("EVALUATOR_MAX_ATTEMPTS must be > 0")
	}
	return nil
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

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
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
