package engine

import (
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMRatePerMinute   int
	LLMClient          *llm.Client // nil = LLM assistant unavailable

	Assistant   string        // "llm" or "mock"
	MockLatency time.Duration // simulated collaborator latency for "mock"

	DraftStore      string // memory, sqlite, redis, postgres
	DraftSQLitePath string
	RedisURL        string
	DatabaseURL     string

	DraftTTL          time.Duration
	GapAutoDismiss    time.Duration
	ClearDraftOnReset bool
	DiffMode          string // "greedy" or "lcs"

	MaxContentChars      int
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
}

// Defaults applied by Init for zero-valued fields.
const (
	DefaultDraftTTL       = time.Hour
	DefaultGapAutoDismiss = 3 * time.Second
)

var cfg Config

// Cfg exposes the engine configuration for sub-packages (tailor, assist, kv).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.DraftTTL <= 0 {
		c.DraftTTL = DefaultDraftTTL
	}
	if c.GapAutoDismiss <= 0 {
		c.GapAutoDismiss = DefaultGapAutoDismiss
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 6000
	}
	if c.DiffMode == "" {
		c.DiffMode = "greedy"
	}
	cfg = c
	Cfg = &cfg
}
