package tailor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/anatolykoptev/go_tailor/internal/engine"
)

// Step is one stage of the review workflow.
type Step int

const (
	StepSelectVariant Step = iota
	StepGapAnalysis
	StepComplianceAssessment
	StepRoleAssessment
	StepContentGeneration
	StepReviewAndEdit
)

// Steps lists the workflow stages in order.
var Steps = []Step{
	StepSelectVariant,
	StepGapAnalysis,
	StepComplianceAssessment,
	StepRoleAssessment,
	StepContentGeneration,
	StepReviewAndEdit,
}

// LastStep is the terminal review step.
const LastStep = StepReviewAndEdit

func (s Step) String() string {
	switch s {
	case StepSelectVariant:
		return "SelectVariant"
	case StepGapAnalysis:
		return "GapAnalysis"
	case StepComplianceAssessment:
		return "ComplianceAssessment"
	case StepRoleAssessment:
		return "RoleAssessment"
	case StepContentGeneration:
		return "ContentGeneration"
	case StepReviewAndEdit:
		return "ReviewAndEdit"
	}
	return "Unknown"
}

// Status is the coarse activity state of a workflow session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusReviewing  Status = "reviewing"
)

// Outcome reports what happened to an asynchronous collaborator call.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeUnavailable Outcome = "unavailable" // collaborator failed; the step stays interactive
	OutcomeStale       Outcome = "stale"       // a newer request or a reset superseded this one
	OutcomeRejected    Outcome = "rejected"    // not valid in the current state
)

// DefaultGapScope is the scope analysis gaps are tracked under unless they name one.
const DefaultGapScope = "story-content"

// Hooks let the host mirror workflow events. Nil hooks are skipped.
// Hooks run after the transition is applied, outside the controller lock.
type Hooks struct {
	VariantSelected  func(variantID string)
	StepAdvance      func(stepIndex int)
	StepBack         func()
	WorkflowReset    func()
	ContentFinalized func(content string)
	GapResolved      func(gapID string)
	GapDismissed     func(gapID string)
}

// Options tune a Controller.
type Options struct {
	Clock             Clock
	GapAutoDismiss    time.Duration
	ClearDraftOnReset bool
	GapScope          string
}

// Recovery is a draft offered back to the editor on mount.
type Recovery struct {
	Draft   Draft `json:"draft"`
	Unsaved bool  `json:"unsaved"` // draft differs from the selected variant
}

// State is the read model every view renders from.
type State struct {
	StepIndex         int                `json:"step_index"`
	StepName          string             `json:"step_name"`
	Status            Status             `json:"status"`
	SelectedVariantID string             `json:"selected_variant_id,omitempty"`
	Ended             bool               `json:"ended"`
	Target            Target             `json:"target"`
	GapAnalysis       *GapAnalysisResult `json:"gap_analysis,omitempty"`
	Compliance        *ComplianceScore   `json:"compliance,omitempty"`
	Alignment         *AlignmentResult   `json:"alignment,omitempty"`
	Generated         string             `json:"generated,omitempty"`
	Content           string             `json:"content"`
	OpenGaps          int                `json:"open_gaps"`
}

type requestKind int

const (
	reqGapAnalysis requestKind = iota
	reqCompliance
	reqAlignment
	reqGenerate
)

// Controller sequences the review workflow for one content block.
// Commands that do not fit the current state are ignored and report false.
type Controller struct {
	mu        sync.Mutex
	variants  *VariantStore
	assistant Assistant
	drafts    *Drafts
	hooks     Hooks
	opts      Options
	gaps      *GapBoard

	step     Step
	status   Status
	selected string
	ended    bool

	target       Target
	gapAnalysis  *GapAnalysisResult
	compliance   *ComplianceScore
	alignment    *AlignmentResult
	generated    string
	generatedFor []gapRef
	editing      string
	edited       bool

	seq   map[requestKind]uint64
	epoch uint64
}

// NewController creates a session at the first step. drafts may be nil to
// disable autosave.
func NewController(variants *VariantStore, assistant Assistant, drafts *Drafts, hooks Hooks, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.GapScope == "" {
		opts.GapScope = DefaultGapScope
	}
	c := &Controller{
		variants:  variants,
		assistant: assistant,
		drafts:    drafts,
		hooks:     hooks,
		opts:      opts,
		status:    StatusIdle,
		seq:       make(map[requestKind]uint64),
	}
	c.gaps = c.newGapBoard()
	return c
}

func (c *Controller) newGapBoard() *GapBoard {
	return NewGapBoard(c.opts.Clock, c.opts.GapAutoDismiss, GapHooks{
		Resolved: func(_, id string) {
			if c.hooks.GapResolved != nil {
				c.hooks.GapResolved(id)
			}
		},
		Dismissed: func(_, id string) {
			if c.hooks.GapDismissed != nil {
				c.hooks.GapDismissed(id)
			}
		},
	})
}

// Variants returns the variant store the session selects from.
func (c *Controller) Variants() *VariantStore { return c.variants }

// Gaps returns the gap board of the session.
func (c *Controller) Gaps() *GapBoard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gaps
}

// GapScope returns the scope analysis gaps are filed under by default.
func (c *Controller) GapScope() string { return c.opts.GapScope }

// draftID is the draft content id of a variant of this session's block.
func (c *Controller) draftID(variantID string) string {
	return DraftContentID(c.variants.Base().ID, variantID)
}

// statusFor derives the resting status for the current position.
// Caller holds c.mu.
func (c *Controller) statusFor() Status {
	switch {
	case c.step == StepSelectVariant && c.selected == "":
		return StatusIdle
	case c.step == LastStep:
		return StatusReviewing
	default:
		return StatusAnalyzing
	}
}

// SelectVariant picks the variant to tailor. Allowed up to the generation step;
// at the first step it also advances to gap analysis.
func (c *Controller) SelectVariant(id string) bool {
	c.mu.Lock()
	if c.ended || c.step > StepContentGeneration {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.variants.Get(id); !ok {
		c.mu.Unlock()
		slog.Debug("select ignored: unknown variant", slog.String("variant", id))
		return false
	}
	if c.selected != id {
		c.editing = ""
		c.edited = false
	}
	c.selected = id
	advanced := false
	if c.step == StepSelectVariant {
		c.step = StepGapAnalysis
		advanced = true
	}
	c.status = c.statusFor()
	step := int(c.step)
	c.mu.Unlock()

	if c.hooks.VariantSelected != nil {
		c.hooks.VariantSelected(id)
	}
	if advanced && c.hooks.StepAdvance != nil {
		c.hooks.StepAdvance(step)
	}
	return true
}

// CompleteStep finishes the step at stepIndex, which must be the current step.
// Completing the terminal step keeps the index and sets status to reviewing.
func (c *Controller) CompleteStep(stepIndex int) bool {
	c.mu.Lock()
	if c.ended || c.selected == "" || stepIndex != int(c.step) {
		c.mu.Unlock()
		slog.Debug("complete ignored", slog.Int("requested", stepIndex), slog.Int("current", int(c.step)))
		return false
	}
	if c.step == LastStep {
		c.status = StatusReviewing
		c.mu.Unlock()
		return true
	}
	c.step++
	c.status = c.statusFor()
	step := int(c.step)
	c.mu.Unlock()

	if c.hooks.StepAdvance != nil {
		c.hooks.StepAdvance(step)
	}
	return true
}

// GoToPreviousStep moves back one step. No-op at the first step.
func (c *Controller) GoToPreviousStep() bool {
	c.mu.Lock()
	if c.ended || c.step == StepSelectVariant {
		c.mu.Unlock()
		return false
	}
	c.step--
	c.status = c.statusFor()
	c.mu.Unlock()

	if c.hooks.StepBack != nil {
		c.hooks.StepBack()
	}
	return true
}

// Reset returns the session to the first step and drops session-scoped state:
// selection, analysis results, gaps and in-flight requests. The draft of the
// selected variant is cleared only with Options.ClearDraftOnReset.
func (c *Controller) Reset(ctx context.Context) bool {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return false
	}
	prevSelected := c.selected
	oldGaps := c.gaps

	c.step = StepSelectVariant
	c.selected = ""
	c.status = StatusIdle
	c.target = Target{}
	c.gapAnalysis = nil
	c.compliance = nil
	c.alignment = nil
	c.generated = ""
	c.generatedFor = nil
	c.editing = ""
	c.edited = false
	c.epoch++
	c.gaps = c.newGapBoard()
	c.mu.Unlock()

	oldGaps.Close()
	if c.opts.ClearDraftOnReset && c.drafts != nil && prevSelected != "" {
		if err := c.drafts.Clear(ctx, c.draftID(prevSelected)); err != nil {
			slog.Warn("reset: draft clear failed", slog.String("variant", prevSelected), slog.Any("error", err))
		}
	}
	if c.hooks.WorkflowReset != nil {
		c.hooks.WorkflowReset()
	}
	return true
}

// SaveAndExit finalizes content from the terminal step, clears its draft and
// ends the session. The finalized content is emitted exactly once.
func (c *Controller) SaveAndExit(ctx context.Context, finalContent string) bool {
	c.mu.Lock()
	if c.ended || c.step != LastStep || c.selected == "" {
		c.mu.Unlock()
		return false
	}
	c.ended = true
	c.status = StatusReviewing
	c.editing = finalContent
	c.edited = true
	selected := c.selected
	gaps := c.gaps
	c.mu.Unlock()

	if c.drafts != nil {
		if err := c.drafts.Clear(ctx, c.draftID(selected)); err != nil {
			slog.Warn("save: draft clear failed", slog.String("variant", selected), slog.Any("error", err))
		}
	}
	gaps.Close()
	engine.IncrContentFinalized()
	slog.Info("content finalized", slog.String("variant", selected), slog.Int("chars", len(finalContent)))
	if c.hooks.ContentFinalized != nil {
		c.hooks.ContentFinalized(finalContent)
	}
	return true
}

// Close ends the session without saving and cancels pending gap timers.
func (c *Controller) Close() {
	c.mu.Lock()
	c.ended = true
	gaps := c.gaps
	c.mu.Unlock()
	gaps.Close()
}

// SetTarget records what the content is tailored toward.
func (c *Controller) SetTarget(t Target) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return false
	}
	c.target = t
	return true
}

// Content returns the current editable text: the edited text if any,
// otherwise the selected variant, otherwise the base block.
func (c *Controller) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentLocked()
}

func (c *Controller) contentLocked() string {
	if c.edited {
		return c.editing
	}
	if v, ok := c.variants.Get(c.selected); ok {
		return v.Content
	}
	return c.variants.Base().Content
}

// Snapshot returns the consolidated session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		StepIndex:         int(c.step),
		StepName:          c.step.String(),
		Status:            c.status,
		SelectedVariantID: c.selected,
		Ended:             c.ended,
		Target:            c.target,
		GapAnalysis:       c.gapAnalysis,
		Compliance:        c.compliance,
		Alignment:         c.alignment,
		Generated:         c.generated,
		Content:           c.contentLocked(),
		OpenGaps:          c.gaps.OpenCount(),
	}
}

// request is the immutable input of one collaborator call.
type request struct {
	kind    requestKind
	token   uint64
	epoch   uint64
	content string
	target  Target
	variant Variant
	gaps    *GapBoard
}

// begin issues a request token. Caller must not hold c.mu.
func (c *Controller) begin(kind requestKind) (request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended || c.selected == "" || c.step == StepSelectVariant || c.step == LastStep {
		return request{}, false
	}
	v, ok := c.variants.Get(c.selected)
	if !ok {
		return request{}, false
	}
	c.seq[kind]++
	if kind == reqGenerate {
		c.status = StatusGenerating
	}
	return request{
		kind:    kind,
		token:   c.seq[kind],
		epoch:   c.epoch,
		content: c.contentLocked(),
		target:  c.target,
		variant: v,
		gaps:    c.gaps,
	}, true
}

// current reports whether r is still the latest request of its kind.
// Caller holds c.mu.
func (c *Controller) current(r request) bool {
	return !c.ended && r.epoch == c.epoch && r.token == c.seq[r.kind]
}

// settle restores the resting status after a generation call.
// Caller holds c.mu.
func (c *Controller) settle(r request) {
	if r.kind == reqGenerate && r.epoch == c.epoch && c.status == StatusGenerating {
		c.status = c.statusFor()
	}
}

func (c *Controller) failed(r request, op string, err error) Outcome {
	engine.IncrAnalysisFailures()
	slog.Warn("collaborator unavailable", slog.String("op", op), slog.Any("error", err))
	c.mu.Lock()
	if c.current(r) {
		c.settle(r)
	}
	c.mu.Unlock()
	return OutcomeUnavailable
}

func (c *Controller) stale(op string) Outcome {
	engine.IncrStaleResults()
	slog.Debug("stale result dropped", slog.String("op", op))
	return OutcomeStale
}

// RunGapAnalysis asks the assistant for gaps between the current content and
// the target job description, and tracks every reported gap as open.
func (c *Controller) RunGapAnalysis(ctx context.Context) (*GapAnalysisResult, Outcome) {
	r, ok := c.begin(reqGapAnalysis)
	if !ok {
		return nil, OutcomeRejected
	}
	engine.IncrAnalyses()
	res, err := c.assistant.AnalyzeGaps(ctx, r.content, r.target.JobDescription, c.variants.OrderedVariants())
	if err != nil {
		return nil, c.failed(r, "analyze_gaps", err)
	}

	c.mu.Lock()
	if !c.current(r) {
		c.mu.Unlock()
		return res, c.stale("analyze_gaps")
	}
	c.gapAnalysis = res
	c.mu.Unlock()

	for _, f := range res.Gaps {
		scope := f.Scope
		if scope == "" {
			scope = c.opts.GapScope
		}
		r.gaps.Add(Gap{
			ID:          f.ID,
			Scope:       scope,
			Severity:    f.Severity,
			Description: f.Description,
			Suggestion:  f.Suggestion,
		})
	}
	return res, OutcomeApplied
}

// RunCompliance scores the current content against the target keywords,
// falling back to keywords extracted from the job description.
func (c *Controller) RunCompliance(ctx context.Context) (*ComplianceScore, Outcome) {
	r, ok := c.begin(reqCompliance)
	if !ok {
		return nil, OutcomeRejected
	}
	keywords := r.target.Keywords
	if len(keywords) == 0 && r.target.JobDescription != "" {
		keywords = KeywordList(r.target.JobDescription, 30)
	}
	engine.IncrAnalyses()
	res, err := c.assistant.ScoreCompliance(ctx, r.content, keywords)
	if err != nil {
		return nil, c.failed(r, "score_compliance", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(r) {
		return res, c.stale("score_compliance")
	}
	c.compliance = res
	return res, OutcomeApplied
}

// RunRoleAssessment scores the current content against the target role and level.
func (c *Controller) RunRoleAssessment(ctx context.Context) (*AlignmentResult, Outcome) {
	r, ok := c.begin(reqAlignment)
	if !ok {
		return nil, OutcomeRejected
	}
	engine.IncrAnalyses()
	res, err := c.assistant.ScoreRoleAlignment(ctx, r.content, r.target.Role, r.target.Level)
	if err != nil {
		return nil, c.failed(r, "score_role_alignment", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(r) {
		return res, c.stale("score_role_alignment")
	}
	c.alignment = res
	return res, OutcomeApplied
}

// Generate asks the assistant for new content addressing the open gaps.
// Status is generating while the call is in flight.
func (c *Controller) Generate(ctx context.Context, prompt string) (string, Outcome) {
	r, ok := c.begin(reqGenerate)
	if !ok {
		return "", OutcomeRejected
	}
	open := openGaps(r.gaps)
	findings := make([]GapFinding, 0, len(open))
	addressed := make([]gapRef, 0, len(open))
	for _, g := range open {
		findings = append(findings, GapFinding{
			ID: g.ID, Scope: g.Scope, Severity: g.Severity,
			Description: g.Description, Suggestion: g.Suggestion,
		})
		addressed = append(addressed, gapRef{scope: g.Scope, id: g.ID})
	}
	v := r.variant
	gen := GenerationContext{
		BaseContent: r.content,
		Variant:     &v,
		Target:      r.target,
		OpenGaps:    findings,
	}

	engine.IncrAnalyses()
	text, err := c.assistant.GenerateContent(ctx, prompt, gen)
	if err != nil {
		return "", c.failed(r, "generate_content", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(r) {
		return text, c.stale("generate_content")
	}
	c.settle(r)
	c.generated = text
	c.generatedFor = addressed
	return text, OutcomeApplied
}

// ApplyGenerated adopts the generated text as the editable content and
// resolves the gaps it addressed. gapIDs overrides which gaps count as
// addressed; each id is resolved in every scope that tracks it.
func (c *Controller) ApplyGenerated(gapIDs []string) bool {
	c.mu.Lock()
	if c.ended || c.generated == "" || c.step < StepContentGeneration {
		c.mu.Unlock()
		return false
	}
	refs := c.generatedFor
	c.editing = c.generated
	c.edited = true
	gaps := c.gaps
	c.mu.Unlock()

	if len(gapIDs) > 0 {
		refs = refs[:0:0]
		for _, scope := range gaps.Scopes() {
			for _, id := range gapIDs {
				refs = append(refs, gapRef{scope: scope, id: id})
			}
		}
	}
	for _, ref := range refs {
		gaps.Resolve(ref.scope, ref.id)
	}
	return true
}

// gapRef locates a gap on the board.
type gapRef struct {
	scope, id string
}

// openGaps returns the open gaps of every scope, most severe first.
func openGaps(b *GapBoard) []Gap {
	var open []Gap
	for _, scope := range b.Scopes() {
		open = append(open, b.Tracker(scope).OpenGaps()...)
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Severity.rank() < open[j].Severity.rank()
	})
	return open
}

// ResolveGap resolves a gap in the session's default scope.
func (c *Controller) ResolveGap(gapID string) bool {
	return c.Gaps().Resolve(c.opts.GapScope, gapID)
}

// DismissGap dismisses a gap in the session's default scope.
func (c *Controller) DismissGap(gapID string) bool {
	return c.Gaps().Dismiss(c.opts.GapScope, gapID)
}

// Edit replaces the editable text during review and autosaves a draft while it
// differs from the selected variant. A failed autosave is logged; the edit is kept.
func (c *Controller) Edit(ctx context.Context, content string) bool {
	c.mu.Lock()
	if c.ended || c.step != LastStep || c.selected == "" {
		c.mu.Unlock()
		return false
	}
	c.editing = content
	c.edited = true
	selected := c.selected
	v, _ := c.variants.Get(selected)
	c.mu.Unlock()

	if c.drafts == nil {
		return true
	}
	meta := map[string]string{"variant_id": selected, "step": LastStep.String()}
	if _, err := c.drafts.SaveIfChanged(ctx, c.draftID(selected), v.Content, content, meta); err != nil {
		slog.Warn("draft autosave failed", slog.String("variant", selected), slog.Any("error", err))
	}
	return true
}

// RecoverDraft loads the persisted draft of the selected variant when the
// editor mounts and adopts it as the editable text.
func (c *Controller) RecoverDraft(ctx context.Context) (*Recovery, bool) {
	c.mu.Lock()
	if c.ended || c.step != LastStep || c.selected == "" || c.drafts == nil {
		c.mu.Unlock()
		return nil, false
	}
	selected := c.selected
	epoch := c.epoch
	c.mu.Unlock()

	draft, ok := c.drafts.Load(ctx, c.draftID(selected))
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended || c.epoch != epoch || c.selected != selected {
		return nil, false
	}
	v, _ := c.variants.Get(selected)
	c.editing = draft.Content
	c.edited = true
	return &Recovery{Draft: *draft, Unsaved: draft.Content != v.Content}, true
}
