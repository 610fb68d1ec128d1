package toolutil

import (
	"context"
	"testing"
	"time"

	"github.com/anatolykoptev/go_tailor/internal/engine"
)

func TestRequire(t *testing.T) {
	if err := Require("session_id", "abc", "content", "x"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := Require("session_id", "abc", "content", "  ")
	if err == nil || err.Error() != "content is required" {
		t.Errorf("err = %v, want content is required", err)
	}
}

func TestNormKind(t *testing.T) {
	tests := []struct{ in, def, want string }{
		{"", "all", "all"},
		{"  GAPS ", "all", "gaps"},
		{"role", "all", "role"},
	}
	for _, tt := range tests {
		if got := NormKind(tt.in, tt.def); got != tt.want {
			t.Errorf("NormKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCacheJSON(t *testing.T) {
	engine.InitCache("", time.Minute, 10, time.Hour)
	ctx := context.Background()

	type out struct{ N int }
	if _, ok := CacheLoadJSON[out](ctx, "variant_diff", "a", "b"); ok {
		t.Fatal("expected miss on empty cache")
	}
	CacheStoreJSON(ctx, out{N: 7}, "variant_diff", "a", "b")
	got, ok := CacheLoadJSON[out](ctx, "variant_diff", "a", "b")
	if !ok || got.N != 7 {
		t.Errorf("got %+v ok %v", got, ok)
	}
	if _, ok := CacheLoadJSON[out](ctx, "variant_diff", "a", "c"); ok {
		t.Error("different parts must not collide")
	}
}
