// Package kv provides the small string key-value stores drafts persist to:
// in-process memory, a local SQLite file, Redis and Postgres.
// Writers race with last-write-wins semantics; no backend locks keys.
package kv

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options select and configure a backend.
type Options struct {
	Backend     string
	SQLitePath  string
	RedisURL    string
	DatabaseURL string
	// Expire bounds how long backends with native expiry keep a value.
	// Zero keeps values until removed.
	Expire time.Duration
}

// Open creates the store named by opts.Backend. An empty backend means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		s, err = OpenSQLite(ctx, opts.SQLitePath)
	case BackendRedis:
		s, err = NewRedis(ctx, opts.RedisURL, opts.Expire)
	case BackendPostgres:
		s, err = ConnectPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
