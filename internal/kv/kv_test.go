package kv

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// testStore runs the shared Store contract against s.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "draft-missing"); err != nil || ok {
		t.Fatalf("Get missing = ok %v err %v, want absent", ok, err)
	}

	if err := s.Set(ctx, "draft-v1", `{"content":"foo"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "draft-v1")
	if err != nil || !ok || got != `{"content":"foo"}` {
		t.Fatalf("Get = %q ok %v err %v", got, ok, err)
	}

	if err := s.Set(ctx, "draft-v1", `{"content":"bar"}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _, _ := s.Get(ctx, "draft-v1"); got != `{"content":"bar"}` {
		t.Errorf("last write should win, got %q", got)
	}

	if err := s.Remove(ctx, "draft-v1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "draft-v1"); ok {
		t.Error("key still present after Remove")
	}
	if err := s.Remove(ctx, "draft-v1"); err != nil {
		t.Errorf("Remove of a missing key should succeed: %v", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testStore(t, m)
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "drafts.db")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "drafts.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set(ctx, "draft-v1", "persisted"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got, ok, _ := s.Get(ctx, "draft-v1"); !ok || got != "persisted" {
		t.Errorf("after reopen Get = %q ok %v", got, ok)
	}
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(context.Background(), "redis://"+mr.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestRedis_PrefixAndExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	s, err := NewRedis(ctx, "redis://"+mr.Addr(), 2*time.Hour)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, "draft-v1", "foo"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("draft:draft-v1") {
		t.Fatal("expected namespaced key draft:draft-v1")
	}
	if ttl := mr.TTL("draft:draft-v1"); ttl != 2*time.Hour {
		t.Errorf("TTL = %v, want 2h", ttl)
	}

	mr.FastForward(3 * time.Hour)
	if _, ok, _ := s.Get(ctx, "draft-v1"); ok {
		t.Error("value should have expired")
	}
}

func TestRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "", 0); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := NewRedis(context.Background(), "not-a-url://", 0); err == nil {
		t.Error("expected error for bad url")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		opts    Options
		wantErr bool
	}{
		{Options{}, false},
		{Options{Backend: "MEMORY"}, false},
		{Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "d.db")}, false},
		{Options{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr()}, false},
		{Options{Backend: BackendPostgres}, true},
		{Options{Backend: "etcd"}, true},
	}
	for _, tt := range tests {
		s, err := Open(ctx, tt.opts)
		if (err != nil) != tt.wantErr {
			t.Errorf("Open(%q) err = %v, wantErr %v", tt.opts.Backend, err, tt.wantErr)
			continue
		}
		if s != nil {
			s.Close()
		}
	}
}
