package tailorserver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

const maxEvents = 100

// Deps are the collaborators shared by every session.
type Deps struct {
	Assistant         tailor.Assistant
	Store             tailor.Store // nil disables draft autosave
	Clock             tailor.Clock
	DraftTTL          time.Duration
	GapAutoDismiss    time.Duration
	ClearDraftOnReset bool
	DiffMode          string
}

// Event is a workflow notification mirrored for the host.
type Event struct {
	Kind string    `json:"kind"`
	Ref  string    `json:"ref,omitempty"`
	At   time.Time `json:"at"`
}

// Session is one open tailoring workflow over a content block.
type Session struct {
	ID        string
	CreatedAt time.Time
	Variants  *tailor.VariantStore
	Workflow  *tailor.Controller

	mu     sync.Mutex
	events []Event
	final  string
}

func (s *Session) record(kind, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Kind: kind, Ref: ref, At: time.Now().UTC()})
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// Events returns the recorded events, oldest first.
func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Finalized returns the content emitted on save, if any.
func (s *Session) Finalized() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final, s.final != ""
}

// Sessions is the registry of open sessions.
type Sessions struct {
	deps   Deps
	drafts *tailor.Drafts

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions(deps Deps) *Sessions {
	if deps.Clock == nil {
		deps.Clock = tailor.SystemClock{}
	}
	s := &Sessions{deps: deps, sessions: make(map[string]*Session)}
	if deps.Store != nil {
		s.drafts = tailor.NewDrafts(deps.Store, deps.Clock, deps.DraftTTL)
	}
	return s
}

// Open starts a session over base with the given variants.
func (r *Sessions) Open(base tailor.ContentBlock, variants []tailor.Variant) (*Session, error) {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = r.deps.Clock.Now().UTC()
	}
	store := tailor.NewVariantStore(base, tailor.DiffFuncFor(r.deps.DiffMode))
	for _, v := range variants {
		if v.CreatedAt.IsZero() {
			v.CreatedAt = r.deps.Clock.Now().UTC()
		}
		if err := store.AddVariant(v); err != nil {
			return nil, fmt.Errorf("session_open: %w", err)
		}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: r.deps.Clock.Now().UTC(),
		Variants:  store,
	}
	hooks := tailor.Hooks{
		VariantSelected: func(id string) { sess.record("variant_selected", id) },
		StepAdvance:     func(i int) { sess.record("step_advance", tailor.Steps[i].String()) },
		StepBack:        func() { sess.record("step_back", "") },
		WorkflowReset:   func() { sess.record("workflow_reset", "") },
		ContentFinalized: func(content string) {
			sess.mu.Lock()
			sess.final = content
			sess.mu.Unlock()
			sess.record("content_finalized", "")
		},
		GapResolved:  func(id string) { sess.record("gap_resolved", id) },
		GapDismissed: func(id string) { sess.record("gap_dismissed", id) },
	}
	sess.Workflow = tailor.NewController(store, r.deps.Assistant, r.drafts, hooks, tailor.Options{
		Clock:             r.deps.Clock,
		GapAutoDismiss:    r.deps.GapAutoDismiss,
		ClearDraftOnReset: r.deps.ClearDraftOnReset,
	})

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	slog.Info("session opened", slog.String("session", sess.ID), slog.String("block", base.ID), slog.Int("variants", len(variants)))
	return sess, nil
}

// Get returns the session with id.
func (r *Sessions) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close ends and forgets the session with id.
func (r *Sessions) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Workflow.Close()
	slog.Info("session closed", slog.String("session", id))
	return nil
}

// Len returns the number of open sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll ends every session.
func (r *Sessions) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Workflow.Close()
	}
}
