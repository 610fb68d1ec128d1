package tailor

import (
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/anatolykoptev/go_tailor/internal/engine"
)

// Severity grades how much a gap hurts the content.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// GapStatus is the lifecycle state of a gap. Transitions only move forward:
// open → resolved → dismissed.
type GapStatus string

const (
	GapOpen      GapStatus = "open"
	GapResolved  GapStatus = "resolved"
	GapDismissed GapStatus = "dismissed"
)

// Gap is a detected shortfall between content and a target requirement.
type Gap struct {
	ID          string     `json:"id"`
	Scope       string     `json:"scope"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Status      GapStatus  `json:"status"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

// GapHooks receive gap transitions. Each transition fires at most once per gap.
type GapHooks struct {
	Resolved  func(scope, gapID string)
	Dismissed func(scope, gapID string)
}

// GapTracker owns the lifecycle of the gaps of one content scope.
// A resolved gap is dismissed automatically after the configured delay
// unless it was dismissed by hand first.
type GapTracker struct {
	mu     sync.Mutex
	scope  string
	clock  Clock
	delay  time.Duration
	hooks  GapHooks
	gaps   map[string]*Gap
	order  []string
	timers map[string]Timer
	closed bool
}

// NewGapTracker creates a tracker for scope. A non-positive delay disables
// automatic dismissal.
func NewGapTracker(scope string, clock Clock, delay time.Duration, hooks GapHooks) *GapTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &GapTracker{
		scope:  scope,
		clock:  clock,
		delay:  delay,
		hooks:  hooks,
		gaps:   make(map[string]*Gap),
		timers: make(map[string]Timer),
	}
}

// Scope returns the content scope this tracker covers.
func (t *GapTracker) Scope() string { return t.scope }

// Add registers g as open. Status supplied by the caller is ignored.
// Returns false if the id is already tracked or the tracker is closed.
func (t *GapTracker) Add(g Gap) bool {
	if g.ID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if _, ok := t.gaps[g.ID]; ok {
		return false
	}
	g.Scope = t.scope
	g.Status = GapOpen
	g.ResolvedAt = nil
	g.DismissedAt = nil
	if g.Severity == "" {
		g.Severity = SeverityMedium
	}
	t.gaps[g.ID] = &g
	t.order = append(t.order, g.ID)
	return true
}

// Resolve moves an open gap to resolved and schedules its automatic dismissal.
// Resolving a gap in any other state, or an unknown gap, does nothing.
func (t *GapTracker) Resolve(id string) bool {
	t.mu.Lock()
	g, ok := t.gaps[id]
	if t.closed || !ok || g.Status != GapOpen {
		t.mu.Unlock()
		return false
	}
	now := t.clock.Now()
	g.Status = GapResolved
	g.ResolvedAt = &now
	if t.delay > 0 {
		t.timers[id] = t.clock.AfterFunc(t.delay, func() { t.autoDismiss(id) })
	}
	t.mu.Unlock()

	engine.IncrGapsResolved()
	slog.Debug("gap resolved", slog.String("scope", t.scope), slog.String("gap", id))
	if t.hooks.Resolved != nil {
		t.hooks.Resolved(t.scope, id)
	}
	return true
}

// Dismiss moves a resolved gap to dismissed. Open, dismissed and unknown gaps
// are left untouched: a gap must be resolved before it can be dismissed.
func (t *GapTracker) Dismiss(id string) bool {
	return t.dismiss(id, false)
}

func (t *GapTracker) autoDismiss(id string) {
	t.dismiss(id, true)
}

func (t *GapTracker) dismiss(id string, auto bool) bool {
	t.mu.Lock()
	g, ok := t.gaps[id]
	if t.closed || !ok || g.Status != GapResolved {
		t.mu.Unlock()
		return false
	}
	now := t.clock.Now()
	g.Status = GapDismissed
	g.DismissedAt = &now
	if timer, ok := t.timers[id]; ok {
		if !auto {
			timer.Stop()
		}
		delete(t.timers, id)
	}
	t.mu.Unlock()

	engine.IncrGapsDismissed()
	slog.Debug("gap dismissed", slog.String("scope", t.scope), slog.String("gap", id), slog.Bool("auto", auto))
	if t.hooks.Dismissed != nil {
		t.hooks.Dismissed(t.scope, id)
	}
	return true
}

// Status returns the current status of a gap.
func (t *GapTracker) Status(id string) (GapStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.gaps[id]
	if !ok {
		return "", false
	}
	return g.Status, true
}

func (t *GapTracker) is(id string, s GapStatus) bool {
	got, ok := t.Status(id)
	return ok && got == s
}

// IsOpen reports whether the gap is still open.
func (t *GapTracker) IsOpen(id string) bool { return t.is(id, GapOpen) }

// IsResolvedAwaitingAck reports whether the gap is resolved but not yet dismissed.
func (t *GapTracker) IsResolvedAwaitingAck(id string) bool { return t.is(id, GapResolved) }

// IsDismissed reports whether the gap has been dismissed.
func (t *GapTracker) IsDismissed(id string) bool { return t.is(id, GapDismissed) }

// Gaps returns a snapshot of all gaps in insertion order.
func (t *GapTracker) Gaps() []Gap {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Gap, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.gaps[id])
	}
	return out
}

// OpenGaps returns the open gaps, most severe first.
func (t *GapTracker) OpenGaps() []Gap {
	open := slices.DeleteFunc(t.Gaps(), func(g Gap) bool { return g.Status != GapOpen })
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Severity.rank() < open[j].Severity.rank()
	})
	return open
}

// OpenCount returns the number of open gaps.
func (t *GapTracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, g := range t.gaps {
		if g.Status == GapOpen {
			n++
		}
	}
	return n
}

// Close cancels pending automatic dismissals. Later calls become no-ops.
func (t *GapTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// GapBoard is the single source of truth for gaps across content scopes.
// Every view reads gap status through it.
type GapBoard struct {
	mu       sync.Mutex
	clock    Clock
	delay    time.Duration
	hooks    GapHooks
	trackers map[string]*GapTracker
	scopes   []string
}

// NewGapBoard creates an empty board whose trackers share clock, delay and hooks.
func NewGapBoard(clock Clock, delay time.Duration, hooks GapHooks) *GapBoard {
	if clock == nil {
		clock = SystemClock{}
	}
	return &GapBoard{
		clock:    clock,
		delay:    delay,
		hooks:    hooks,
		trackers: make(map[string]*GapTracker),
	}
}

// Tracker returns the tracker for scope, creating it on first use.
func (b *GapBoard) Tracker(scope string) *GapTracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.trackers[scope]; ok {
		return t
	}
	t := NewGapTracker(scope, b.clock, b.delay, b.hooks)
	b.trackers[scope] = t
	b.scopes = append(b.scopes, scope)
	return t
}

func (b *GapBoard) lookup(scope string) (*GapTracker, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trackers[scope]
	return t, ok
}

// Add registers g under g.Scope.
func (b *GapBoard) Add(g Gap) bool {
	return b.Tracker(g.Scope).Add(g)
}

// Resolve resolves gapID in scope. Unknown scopes or ids do nothing.
func (b *GapBoard) Resolve(scope, gapID string) bool {
	t, ok := b.lookup(scope)
	return ok && t.Resolve(gapID)
}

// Dismiss dismisses gapID in scope. Unknown scopes or ids do nothing.
func (b *GapBoard) Dismiss(scope, gapID string) bool {
	t, ok := b.lookup(scope)
	return ok && t.Dismiss(gapID)
}

// Status returns the status of gapID in scope.
func (b *GapBoard) Status(scope, gapID string) (GapStatus, bool) {
	t, ok := b.lookup(scope)
	if !ok {
		return "", false
	}
	return t.Status(gapID)
}

// Scopes returns the known scopes in creation order.
func (b *GapBoard) Scopes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.scopes)
}

// Gaps returns the gaps of scope, or nil for an unknown scope.
func (b *GapBoard) Gaps(scope string) []Gap {
	t, ok := b.lookup(scope)
	if !ok {
		return nil
	}
	return t.Gaps()
}

// OpenCount returns the number of open gaps across all scopes.
func (b *GapBoard) OpenCount() int {
	n := 0
	for _, scope := range b.Scopes() {
		if t, ok := b.lookup(scope); ok {
			n += t.OpenCount()
		}
	}
	return n
}

// DropScope destroys a scope together with its gaps and pending timers.
func (b *GapBoard) DropScope(scope string) {
	b.mu.Lock()
	t, ok := b.trackers[scope]
	if ok {
		delete(b.trackers, scope)
		b.scopes = slices.DeleteFunc(b.scopes, func(s string) bool { return s == scope })
	}
	b.mu.Unlock()
	if ok {
		t.Close()
	}
}

// Close tears down every scope.
func (b *GapBoard) Close() {
	for _, scope := range b.Scopes() {
		b.DropScope(scope)
	}
}
