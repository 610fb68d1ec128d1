// go_tailor — human-in-the-loop career content tailoring MCP server.
//
// Exposes session, variant, workflow and gap tools that walk one story or
// paragraph through gap analysis, compliance and role scoring, generation
// and review, with drafts autosaved to a pluggable key-value store.
// Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_tailor/internal/engine"
	"github.com/anatolykoptev/go_tailor/internal/engine/assist"
	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
	"github.com/anatolykoptev/go_tailor/internal/kv"
	"github.com/anatolykoptev/go_tailor/internal/tailorserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	initEngine()
	c := engine.Cfg

	ctx := context.Background()
	store, err := kv.Open(ctx, kv.Options{
		Backend:     c.DraftStore,
		SQLitePath:  c.DraftSQLitePath,
		RedisURL:    c.RedisURL,
		DatabaseURL: c.DatabaseURL,
		Expire:      c.DraftTTL,
	})
	if err != nil {
		slog.Warn("draft store init failed, falling back to memory",
			slog.String("backend", c.DraftStore), slog.Any("error", err))
		store = kv.NewMemory()
	}
	defer store.Close()

	sessions := tailorserver.NewSessions(tailorserver.Deps{
		Assistant:         newAssistant(c),
		Store:             store,
		DraftTTL:          c.DraftTTL,
		GapAutoDismiss:    c.GapAutoDismiss,
		ClearDraftOnReset: c.ClearDraftOnReset,
		DiffMode:          c.DiffMode,
	})
	defer sessions.CloseAll()

	slog.Info("starting go_tailor",
		slog.String("port", mcpPort),
		slog.String("assistant", c.Assistant),
		slog.String("draft_store", c.DraftStore),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_tailor",
		Version: version,
	}, nil)

	tailorserver.RegisterTools(server, sessions)
	slog.Info("tools registered", slog.Int("count", tailorserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_tailor",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func newAssistant(c *engine.Config) tailor.Assistant {
	if strings.EqualFold(c.Assistant, "mock") {
		slog.Info("using offline mock assistant", slog.Duration("latency", c.MockLatency))
		return &assist.Mock{Latency: c.MockLatency}
	}
	if c.LLMClient == nil {
		slog.Warn("LLM_API_KEY not set, assistant calls will report unavailable")
	}
	return assist.NewLLM(c.LLMRatePerMinute)
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		slog.Warn("invalid boolean, using default", slog.String("key", key), slog.Bool("default", def))
		return def
	}
	return v
}

func initEngine() {
	c := engine.Config{
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 8192),
		LLMRatePerMinute:     env.Int("LLM_RATE_PER_MINUTE", 30),
		Assistant:            env.Str("ASSISTANT", "llm"),
		MockLatency:          env.Duration("MOCK_LATENCY", 0),
		DraftStore:           env.Str("DRAFT_STORE", kv.BackendSQLite),
		DraftSQLitePath:      env.Str("DRAFT_SQLITE_PATH", kv.DefaultSQLitePath()),
		RedisURL:             env.Str("REDIS_URL", ""),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		DraftTTL:             env.Duration("DRAFT_TTL", engine.DefaultDraftTTL),
		GapAutoDismiss:       env.Duration("GAP_AUTO_DISMISS", engine.DefaultGapAutoDismiss),
		ClearDraftOnReset:    envBool("CLEAR_DRAFT_ON_RESET", false),
		DiffMode:             env.Str("DIFF_MODE", "greedy"),
		MaxContentChars:      env.Int("MAX_CONTENT_CHARS", 6000),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
	}

	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		)
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(c.RedisURL, cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}
