// Package toolutil provides shared helper functions for go_tailor MCP tools.
package toolutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_tailor/internal/engine"
)

// Require returns an error naming the first empty field.
// Pairs are given as name, value, name, value...
func Require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%s is required", pairs[i])
		}
	}
	return nil
}

// NormKind lowercases and trims a mode field: empty string → def.
func NormKind(kind, def string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return def
	}
	return kind
}

// CacheLoadJSON tries to load a cached tool output of type T.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, tool string, parts ...string) (T, bool) {
	return engine.CacheLoadJSON[T](ctx, cacheKey(tool, parts))
}

// CacheStoreJSON stores a tool output in the engine cache.
func CacheStoreJSON[T any](ctx context.Context, v T, tool string, parts ...string) {
	engine.CacheStoreJSON(ctx, cacheKey(tool, parts), v)
}

func cacheKey(tool string, parts []string) string {
	return engine.CacheKey(append([]string{tool}, parts...)...)
}
