package tailor

import (
	"sync"
	"testing"
	"time"
)

type gapEvents struct {
	mu        sync.Mutex
	resolved  []string
	dismissed []string
}

func (e *gapEvents) hooks() GapHooks {
	return GapHooks{
		Resolved: func(_, id string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.resolved = append(e.resolved, id)
		},
		Dismissed: func(_, id string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.dismissed = append(e.dismissed, id)
		},
	}
}

func (e *gapEvents) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resolved), len(e.dismissed)
}

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T) (*GapTracker, *manualClock, *gapEvents) {
	t.Helper()
	clock := newManualClock(epoch)
	ev := &gapEvents{}
	tr := NewGapTracker("story-content", clock, 3*time.Second, ev.hooks())
	if !tr.Add(Gap{ID: "g1", Severity: SeverityHigh, Description: "No metrics"}) {
		t.Fatal("Add(g1) = false")
	}
	return tr, clock, ev
}

func TestGapTracker_AutoDismiss(t *testing.T) {
	tr, clock, ev := newTestTracker(t)

	if !tr.IsOpen("g1") {
		t.Fatal("new gap should be open")
	}
	if !tr.Resolve("g1") {
		t.Fatal("Resolve(g1) = false")
	}
	if !tr.IsResolvedAwaitingAck("g1") {
		t.Fatal("gap should await acknowledgement after resolve")
	}

	clock.Advance(2999 * time.Millisecond)
	if !tr.IsResolvedAwaitingAck("g1") {
		t.Fatal("gap dismissed before the delay elapsed")
	}
	clock.Advance(time.Millisecond)
	if !tr.IsDismissed("g1") {
		t.Fatal("gap should be dismissed after 3s")
	}
	if r, d := ev.counts(); r != 1 || d != 1 {
		t.Errorf("events resolved=%d dismissed=%d, want 1/1", r, d)
	}
}

func TestGapTracker_ManualDismissBeforeTimer(t *testing.T) {
	tr, clock, ev := newTestTracker(t)
	tr.Resolve("g1")

	clock.Advance(time.Second)
	if !tr.Dismiss("g1") {
		t.Fatal("manual Dismiss = false")
	}
	if clock.pending() != 0 {
		t.Errorf("manual dismiss should cancel the timer, %d pending", clock.pending())
	}
	clock.Advance(5 * time.Second)

	if !tr.IsDismissed("g1") {
		t.Fatal("gap should stay dismissed")
	}
	if _, d := ev.counts(); d != 1 {
		t.Errorf("dismissed emitted %d times, want 1", d)
	}
}

func TestGapTracker_Idempotence(t *testing.T) {
	tr, clock, ev := newTestTracker(t)

	if tr.Dismiss("g1") {
		t.Error("dismiss of an open gap must be a no-op")
	}
	if !tr.IsOpen("g1") {
		t.Fatal("open gap changed state on dismiss")
	}

	tr.Resolve("g1")
	if tr.Resolve("g1") {
		t.Error("second Resolve should be a no-op")
	}
	clock.Advance(3 * time.Second)

	for range 3 {
		tr.Resolve("g1")
		tr.Dismiss("g1")
	}
	if !tr.IsDismissed("g1") {
		t.Fatal("dismissed gap must stay dismissed")
	}
	if r, d := ev.counts(); r != 1 || d != 1 {
		t.Errorf("events resolved=%d dismissed=%d, want 1/1", r, d)
	}

	if tr.Resolve("unknown") || tr.Dismiss("unknown") {
		t.Error("unknown ids must be no-ops")
	}
}

func TestGapTracker_AddDefaults(t *testing.T) {
	tr := NewGapTracker("outcome-metrics", newManualClock(epoch), 0, GapHooks{})
	tr.Add(Gap{ID: "a", Scope: "elsewhere", Status: GapDismissed})
	tr.Add(Gap{ID: "b", Severity: SeverityLow})
	tr.Add(Gap{ID: "c", Severity: SeverityHigh})

	if tr.Add(Gap{ID: "a"}) {
		t.Error("duplicate id should be rejected")
	}
	gaps := tr.Gaps()
	if gaps[0].Status != GapOpen || gaps[0].Scope != "outcome-metrics" || gaps[0].Severity != SeverityMedium {
		t.Errorf("Add did not normalize gap: %+v", gaps[0])
	}

	open := tr.OpenGaps()
	if open[0].ID != "c" || open[1].ID != "a" || open[2].ID != "b" {
		t.Errorf("OpenGaps not ordered by severity: %v", open)
	}
	if tr.OpenCount() != 3 {
		t.Errorf("OpenCount = %d, want 3", tr.OpenCount())
	}
}

func TestGapTracker_NoDelayKeepsResolved(t *testing.T) {
	clock := newManualClock(epoch)
	tr := NewGapTracker("s", clock, 0, GapHooks{})
	tr.Add(Gap{ID: "g"})
	tr.Resolve("g")
	clock.Advance(time.Hour)
	if !tr.IsResolvedAwaitingAck("g") {
		t.Error("zero delay should disable automatic dismissal")
	}
}

func TestGapTracker_CloseCancelsTimers(t *testing.T) {
	tr, clock, ev := newTestTracker(t)
	tr.Resolve("g1")
	tr.Close()

	if clock.pending() != 0 {
		t.Errorf("Close left %d timers pending", clock.pending())
	}
	clock.Advance(10 * time.Second)
	if !tr.IsResolvedAwaitingAck("g1") {
		t.Error("closed tracker must not transition")
	}
	if _, d := ev.counts(); d != 0 {
		t.Errorf("dismissed emitted after close: %d", d)
	}
	if tr.Add(Gap{ID: "late"}) {
		t.Error("Add after Close should fail")
	}
}

func TestGapBoard_Scopes(t *testing.T) {
	clock := newManualClock(epoch)
	b := NewGapBoard(clock, 3*time.Second, GapHooks{})
	b.Add(Gap{ID: "g1", Scope: "role-description"})
	b.Add(Gap{ID: "g1", Scope: "story-content"})
	b.Add(Gap{ID: "g2", Scope: "story-content"})

	if got := b.Scopes(); len(got) != 2 || got[0] != "role-description" {
		t.Fatalf("Scopes = %v", got)
	}
	if b.OpenCount() != 3 {
		t.Fatalf("OpenCount = %d, want 3", b.OpenCount())
	}

	b.Resolve("story-content", "g1")
	if st, _ := b.Status("role-description", "g1"); st != GapOpen {
		t.Errorf("same id in another scope changed: %s", st)
	}
	if b.Resolve("missing", "g1") || b.Dismiss("missing", "g1") {
		t.Error("unknown scope must be a no-op")
	}

	b.DropScope("story-content")
	if clock.pending() != 0 {
		t.Error("DropScope should cancel pending timers")
	}
	if b.Gaps("story-content") != nil {
		t.Error("dropped scope still has gaps")
	}
	if b.OpenCount() != 1 {
		t.Errorf("OpenCount after drop = %d, want 1", b.OpenCount())
	}

	b.Close()
	if len(b.Scopes()) != 0 {
		t.Error("Close should drop every scope")
	}
}
