package tailorserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_tailor/internal/engine"
	"github.com/anatolykoptev/go_tailor/internal/engine/assist"
	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
	"github.com/anatolykoptev/go_tailor/internal/kv"
)

const testJD = "Senior platform engineer. Kubernetes, Terraform and Go required. Kubernetes operators a plus."

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	engine.InitCache("", time.Minute, 100, time.Hour)
	s := NewSessions(Deps{
		Assistant:      &assist.Mock{},
		Store:          kv.NewMemory(),
		DraftTTL:       time.Hour,
		GapAutoDismiss: time.Hour,
	})
	t.Cleanup(s.CloseAll)
	return s
}

func openTestSession(t *testing.T, s *Sessions) SessionOpenOutput {
	t.Helper()
	out, err := s.sessionOpen(context.Background(), SessionOpenInput{
		BlockID:     "story-1",
		BaseContent: "Led the team that migrated billing to AWS.",
		Variants: []VariantInput{
			{ID: "plain", Content: "Led the team that moved billing to AWS."},
			{ID: "platform", Content: "Led the platform team that migrated billing to AWS.", TargetLabel: "Platform Engineer"},
			{ID: "infra", Content: "Led the team that migrated billing to Kubernetes on AWS.", FilledGapRef: "missing-kubernetes", CreatedBy: "ai"},
		},
	})
	require.NoError(t, err)
	return out
}

func TestSessionOpen(t *testing.T) {
	s := newTestSessions(t)
	out := openTestSession(t, s)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "story-1", out.BlockID)
	require.Len(t, out.Variants, 3)
	assert.Equal(t, "infra", out.Variants[0].Variant.ID)
	assert.Equal(t, tailor.ClassGapFill, out.Variants[0].Classification)
	assert.Equal(t, "platform", out.Variants[1].Variant.ID)
	assert.Equal(t, "plain", out.Variants[2].Variant.ID)
	assert.Equal(t, tailor.CreatedByHuman, out.Variants[2].Variant.CreatedBy)
	assert.Equal(t, 0, out.State.StepIndex)
	assert.Equal(t, 1, s.Len())
}

func TestSessionOpen_Invalid(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()

	_, err := s.sessionOpen(ctx, SessionOpenInput{})
	assert.EqualError(t, err, "base_content is required")

	_, err = s.sessionOpen(ctx, SessionOpenInput{
		BaseContent: "x",
		Variants:    []VariantInput{{ID: "a", Content: "y"}, {ID: "a", Content: "z"}},
	})
	assert.ErrorIs(t, err, tailor.ErrDuplicateVariant)

	_, err = s.sessionOpen(ctx, SessionOpenInput{
		BaseContent: "x",
		Variants:    []VariantInput{{Content: "y", CreatedBy: "robot"}},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestUnknownSession(t *testing.T) {
	s := newTestSessions(t)
	_, err := s.workflowState(context.Background(), SessionRef{SessionID: "nope"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.workflowState(context.Background(), SessionRef{})
	assert.EqualError(t, err, "session_id is required")
}

func TestSessionClose(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	sess := openTestSession(t, s)

	out, err := s.sessionClose(ctx, SessionRef{SessionID: sess.SessionID})
	require.NoError(t, err)
	assert.True(t, out.Closed)
	assert.Equal(t, 0, out.Open)

	_, err = s.sessionClose(ctx, SessionRef{SessionID: sess.SessionID})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestVariantTools(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	added, err := s.variantAdd(ctx, VariantAddInput{SessionID: id, Variant: VariantInput{Content: "Owned billing.", Tags: []string{"short"}}})
	require.NoError(t, err)
	assert.NotEmpty(t, added.Variant.ID)
	assert.False(t, added.Variant.CreatedAt.IsZero())
	assert.Equal(t, tailor.ClassFallback, added.Classification)

	_, err = s.variantAdd(ctx, VariantAddInput{SessionID: id, Variant: VariantInput{ID: "plain", Content: "dup"}})
	assert.ErrorIs(t, err, tailor.ErrDuplicateVariant)

	list, err := s.variantList(ctx, VariantListInput{SessionID: id, Classification: "fallback"})
	require.NoError(t, err)
	assert.Equal(t, 4, list.Total)
	require.Len(t, list.Variants, 2)

	list, err = s.variantList(ctx, VariantListInput{SessionID: id, Tag: "short"})
	require.NoError(t, err)
	require.Len(t, list.Variants, 1)
	assert.Equal(t, added.Variant.ID, list.Variants[0].Variant.ID)

	list, err = s.variantList(ctx, VariantListInput{SessionID: id, CreatedBy: "AI"})
	require.NoError(t, err)
	require.Len(t, list.Variants, 1)
	assert.Equal(t, "infra", list.Variants[0].Variant.ID)

	ack, err := s.variantRemove(ctx, VariantRefInput{SessionID: id, VariantID: added.Variant.ID})
	require.NoError(t, err)
	assert.True(t, ack.Applied)
	ack, err = s.variantRemove(ctx, VariantRefInput{SessionID: id, VariantID: "missing"})
	require.NoError(t, err)
	assert.False(t, ack.Applied)
}

func TestVariantRemove_Selected(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	_, err := s.workflowSelect(ctx, VariantRefInput{SessionID: id, VariantID: "plain"})
	require.NoError(t, err)
	_, err = s.variantRemove(ctx, VariantRefInput{SessionID: id, VariantID: "plain"})
	assert.Error(t, err)
}

func TestVariantDiff(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	out, err := s.variantDiff(ctx, VariantRefInput{SessionID: id, VariantID: "platform"})
	require.NoError(t, err)
	assert.Equal(t, "platform", out.VariantID)
	assert.Equal(t, tailor.DiffSummary{Unchanged: 8, Added: 1}, out.Summary)
	assert.Equal(t, "Led the [+platform] team that migrated billing to AWS.", out.Rendered)

	// Same texts hit the cache and still report the requested variant.
	again, err := s.variantDiff(ctx, VariantRefInput{SessionID: id, VariantID: "platform"})
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, err = s.variantDiff(ctx, VariantRefInput{SessionID: id, VariantID: "missing"})
	assert.Error(t, err)
}

func TestRenderDiff(t *testing.T) {
	tokens := []tailor.DiffToken{
		{Text: "a", Kind: tailor.DiffUnchanged},
		{Text: "x", Kind: tailor.DiffAdded},
		{Text: "b", Kind: tailor.DiffRemoved},
		{Text: "c", Kind: tailor.DiffUnchanged},
	}
	assert.Equal(t, "a [+x] [-b] c", renderDiff(tokens))
	assert.Equal(t, "", renderDiff(nil))
}

func TestWorkflow_EndToEnd(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	ack, err := s.workflowTarget(ctx, TargetInput{SessionID: id, JobDescription: testJD, Role: "platform engineer", Level: "senior"})
	require.NoError(t, err)
	assert.True(t, ack.Applied)

	ack, err = s.workflowSelect(ctx, VariantRefInput{SessionID: id, VariantID: "platform"})
	require.NoError(t, err)
	require.True(t, ack.Applied)
	assert.Equal(t, int(tailor.StepGapAnalysis), ack.State.StepIndex)

	an, err := s.workflowAnalyze(ctx, AnalyzeInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, tailor.OutcomeApplied, an.Outcomes["gaps"])
	require.NotNil(t, an.GapAnalysis)
	assert.NotEmpty(t, an.GapAnalysis.Gaps)
	assert.Positive(t, an.State.OpenGaps)

	gaps, err := s.gapList(ctx, GapListInput{SessionID: id, OpenOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, gaps.Gaps)
	assert.Equal(t, len(gaps.Gaps), gaps.OpenCount)

	for step := tailor.StepGapAnalysis; step < tailor.StepContentGeneration; step++ {
		ack, err = s.workflowCompleteStep(ctx, CompleteStepInput{SessionID: id, StepIndex: int(step)})
		require.NoError(t, err)
		require.True(t, ack.Applied, "complete %s", step)
		if step+1 < tailor.StepContentGeneration {
			an, err = s.workflowAnalyze(ctx, AnalyzeInput{SessionID: id})
			require.NoError(t, err)
			assert.Len(t, an.Outcomes, 1)
		}
	}
	st, err := s.workflowState(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	assert.NotNil(t, st.State.Compliance)
	assert.NotNil(t, st.State.Alignment)
	assert.Equal(t, tailor.StepContentGeneration.String(), st.State.StepName)

	gen, err := s.workflowGenerate(ctx, GenerateInput{SessionID: id, Prompt: "keep it short"})
	require.NoError(t, err)
	assert.Equal(t, tailor.OutcomeApplied, gen.Outcome)
	assert.NotEmpty(t, gen.Text)

	ack, err = s.workflowApply(ctx, ApplyInput{SessionID: id})
	require.NoError(t, err)
	assert.True(t, ack.Applied)
	assert.Equal(t, 0, ack.State.OpenGaps)
	assert.Equal(t, gen.Text, ack.State.Content)

	ack, err = s.workflowCompleteStep(ctx, CompleteStepInput{SessionID: id, StepIndex: int(tailor.StepContentGeneration)})
	require.NoError(t, err)
	require.True(t, ack.Applied)

	ack, err = s.workflowEdit(ctx, ContentInput{SessionID: id, Content: "Led the platform team that moved billing to Kubernetes."})
	require.NoError(t, err)
	assert.True(t, ack.Applied)

	rec, err := s.workflowRecover(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	require.True(t, rec.Found)
	assert.True(t, rec.Recovery.Unsaved)

	ack, err = s.workflowSave(ctx, ContentInput{SessionID: id, Content: "Final story."})
	require.NoError(t, err)
	assert.True(t, ack.Applied)
	assert.True(t, ack.State.Ended)

	st, err = s.workflowState(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, "Final story.", st.Finalized)
	assert.Len(t, st.Steps, len(tailor.Steps))
	kinds := make([]string, len(st.Events))
	for i, e := range st.Events {
		kinds[i] = e.Kind
	}
	assert.Contains(t, kinds, "variant_selected")
	assert.Contains(t, kinds, "gap_resolved")
	assert.Equal(t, "content_finalized", kinds[len(kinds)-1])

	// Draft cleared on save.
	rec, err = s.workflowRecover(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	assert.False(t, rec.Found)

	ack, err = s.workflowSave(ctx, ContentInput{SessionID: id, Content: "Again."})
	require.NoError(t, err)
	assert.False(t, ack.Applied)
}

func TestWorkflow_Rejected(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	an, err := s.workflowAnalyze(ctx, AnalyzeInput{SessionID: id, Kind: "all"})
	require.NoError(t, err)
	for kind, o := range an.Outcomes {
		assert.Equal(t, tailor.OutcomeRejected, o, kind)
	}
	assert.Len(t, an.Outcomes, 3)

	_, err = s.workflowAnalyze(ctx, AnalyzeInput{SessionID: id, Kind: "vibes"})
	assert.Error(t, err)

	gen, err := s.workflowGenerate(ctx, GenerateInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, tailor.OutcomeRejected, gen.Outcome)

	ack, err := s.workflowCompleteStep(ctx, CompleteStepInput{SessionID: id, StepIndex: 0})
	require.NoError(t, err)
	assert.False(t, ack.Applied)

	ack, err = s.workflowBack(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	assert.False(t, ack.Applied)

	_, err = s.workflowSave(ctx, ContentInput{SessionID: id})
	assert.EqualError(t, err, "content is required")
}

func TestWorkflow_AnalyzeUnavailable(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	_, err := s.workflowSelect(ctx, VariantRefInput{SessionID: id, VariantID: "plain"})
	require.NoError(t, err)
	// No job description: the assistant refuses and the workflow carries on.
	an, err := s.workflowAnalyze(ctx, AnalyzeInput{SessionID: id, Kind: "gaps"})
	require.NoError(t, err)
	assert.Equal(t, tailor.OutcomeUnavailable, an.Outcomes["gaps"])
	assert.Nil(t, an.GapAnalysis)
	assert.Equal(t, tailor.StatusAnalyzing, an.State.Status)
}

func TestWorkflow_ResetAndBack(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	_, err := s.workflowSelect(ctx, VariantRefInput{SessionID: id, VariantID: "plain"})
	require.NoError(t, err)
	ack, err := s.workflowCompleteStep(ctx, CompleteStepInput{SessionID: id, StepIndex: 1})
	require.NoError(t, err)
	require.Equal(t, 2, ack.State.StepIndex)

	ack, err = s.workflowBack(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	assert.True(t, ack.Applied)
	assert.Equal(t, 1, ack.State.StepIndex)

	ack, err = s.workflowReset(ctx, SessionRef{SessionID: id})
	require.NoError(t, err)
	assert.True(t, ack.Applied)
	assert.Equal(t, 0, ack.State.StepIndex)
	assert.Empty(t, ack.State.SelectedVariantID)
}

func TestGapTools(t *testing.T) {
	s := newTestSessions(t)
	ctx := context.Background()
	id := openTestSession(t, s).SessionID

	add, err := s.gapAdd(ctx, GapAddInput{SessionID: id, ID: "g1", Description: "no metrics"})
	require.NoError(t, err)
	assert.True(t, add.Applied)
	assert.Equal(t, tailor.GapOpen, add.Status)

	add, err = s.gapAdd(ctx, GapAddInput{SessionID: id, ID: "g1", Description: "again"})
	require.NoError(t, err)
	assert.False(t, add.Applied)

	_, err = s.gapAdd(ctx, GapAddInput{SessionID: id, ID: "g2", Description: "x", Severity: "urgent"})
	assert.Error(t, err)

	_, err = s.gapAdd(ctx, GapAddInput{SessionID: id, Scope: "summary", ID: "g3", Description: "too long", Severity: "LOW"})
	require.NoError(t, err)

	res, err := s.gapResolve(ctx, GapRefInput{SessionID: id, GapID: "g1"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, tailor.GapResolved, res.Status)

	res, err = s.gapDismiss(ctx, GapRefInput{SessionID: id, GapID: "g1"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, tailor.GapDismissed, res.Status)

	res, err = s.gapResolve(ctx, GapRefInput{SessionID: id, GapID: "g1"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, tailor.GapDismissed, res.Status)

	_, err = s.gapResolve(ctx, GapRefInput{SessionID: id, GapID: "nope"})
	assert.Error(t, err)

	all, err := s.gapList(ctx, GapListInput{SessionID: id})
	require.NoError(t, err)
	assert.Len(t, all.Gaps, 2)
	assert.Equal(t, 1, all.OpenCount)

	scoped, err := s.gapList(ctx, GapListInput{SessionID: id, Scope: "summary", OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, scoped.Gaps, 1)
	assert.Equal(t, tailor.SeverityLow, scoped.Gaps[0].Severity)

	none, err := s.gapList(ctx, GapListInput{SessionID: id, Scope: "unknown"})
	require.NoError(t, err)
	assert.NotNil(t, none.Gaps)
	assert.Empty(t, none.Gaps)
}

func TestSessions_NoDraftStore(t *testing.T) {
	s := NewSessions(Deps{Assistant: &assist.Mock{Fail: errors.New("offline")}})
	t.Cleanup(s.CloseAll)
	sess, err := s.Open(tailor.ContentBlock{Content: "base"}, []tailor.Variant{{ID: "v", Content: "variant"}})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Variants.Base().ID)

	ctx := context.Background()
	c := sess.Workflow
	require.True(t, c.SelectVariant("v"))
	for i := 1; i < int(tailor.LastStep); i++ {
		require.True(t, c.CompleteStep(i))
	}
	assert.True(t, c.Edit(ctx, "edited"))
	_, ok := c.RecoverDraft(ctx)
	assert.False(t, ok)
}

func TestSession_EventLogBounded(t *testing.T) {
	s := newTestSessions(t)
	sess, err := s.Open(tailor.ContentBlock{Content: "base"}, []tailor.Variant{{ID: "a", Content: "a"}, {ID: "b", Content: "b"}})
	require.NoError(t, err)
	for i := 0; i < maxEvents; i++ {
		sess.Workflow.SelectVariant([]string{"a", "b"}[i%2])
	}
	events := sess.Events()
	assert.Len(t, events, maxEvents)
	assert.Equal(t, "variant_selected", events[len(events)-1].Kind)
	// The first selection also advanced the step; the oldest event was dropped.
	assert.Equal(t, "step_advance", events[0].Kind)
}
