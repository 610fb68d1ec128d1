package tailor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_tailor/internal/engine"
)

// Store is the key-value collaborator drafts persist to.
// Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Draft is a locally persisted, not yet committed edit.
type Draft struct {
	Key      string            `json:"-"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	SavedAt  time.Time         `json:"saved_at"`
}

// Age returns how long ago the draft was saved.
func (d Draft) Age(now time.Time) time.Duration {
	return now.Sub(d.SavedAt)
}

// DraftKey returns the store key for a content id.
func DraftKey(contentID string) string {
	return "draft-" + contentID
}

// DraftContentID names the edit of variantID inside blockID. Variant ids are
// only unique within their block.
func DraftContentID(blockID, variantID string) string {
	return blockID + "/" + variantID
}

// Drafts autosaves and recovers in-progress edits. Drafts older than the TTL
// are discarded on load rather than offered for recovery.
type Drafts struct {
	store Store
	clock Clock
	ttl   time.Duration
}

// NewDrafts creates draft persistence over store. A non-positive ttl keeps drafts forever.
func NewDrafts(store Store, clock Clock, ttl time.Duration) *Drafts {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Drafts{store: store, clock: clock, ttl: ttl}
}

// TTL returns the staleness limit.
func (d *Drafts) TTL() time.Duration { return d.ttl }

// Save writes content under the draft key for contentID, replacing any previous draft.
func (d *Drafts) Save(ctx context.Context, contentID, content string, metadata map[string]string) error {
	draft := Draft{Content: content, Metadata: metadata, SavedAt: d.clock.Now().UTC()}
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("draft marshal: %w", err)
	}
	if err := d.store.Set(ctx, DraftKey(contentID), string(data)); err != nil {
		engine.IncrDraftSaveErrors()
		return fmt.Errorf("draft save %s: %w", contentID, err)
	}
	engine.IncrDraftsSaved()
	return nil
}

// SaveIfChanged saves a draft only when content differs from base, and clears
// the draft when the edit has returned to base. Reports whether a draft was written.
func (d *Drafts) SaveIfChanged(ctx context.Context, contentID, base, content string, metadata map[string]string) (bool, error) {
	if content == base {
		return false, d.Clear(ctx, contentID)
	}
	if err := d.Save(ctx, contentID, content, metadata); err != nil {
		return false, err
	}
	return true, nil
}

// Load returns the draft for contentID. Missing, unreadable and stale drafts
// all report ok=false; stale drafts are also removed from the store.
func (d *Drafts) Load(ctx context.Context, contentID string) (*Draft, bool) {
	key := DraftKey(contentID)
	raw, ok, err := d.store.Get(ctx, key)
	if err != nil {
		slog.Warn("draft load failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		slog.Debug("draft unreadable, ignoring", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	draft.Key = key

	if d.ttl > 0 && draft.Age(d.clock.Now()) > d.ttl {
		engine.IncrDraftsDiscarded()
		slog.Info("stale draft discarded", slog.String("key", key), slog.Duration("age", draft.Age(d.clock.Now())))
		if err := d.store.Remove(ctx, key); err != nil {
			slog.Warn("stale draft remove failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}

	engine.IncrDraftsRecovered()
	return &draft, true
}

// Clear removes the draft for contentID.
func (d *Drafts) Clear(ctx context.Context, contentID string) error {
	if err := d.store.Remove(ctx, DraftKey(contentID)); err != nil {
		return fmt.Errorf("draft clear %s: %w", contentID, err)
	}
	return nil
}
