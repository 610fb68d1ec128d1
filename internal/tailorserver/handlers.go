package tailorserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
	"github.com/anatolykoptev/go_tailor/internal/toolutil"
)

func toVariant(in VariantInput) (tailor.Variant, error) {
	if strings.TrimSpace(in.Content) == "" {
		return tailor.Variant{}, errors.New("variant content is required")
	}
	creator := tailor.Creator(toolutil.NormKind(in.CreatedBy, string(tailor.CreatedByHuman)))
	switch creator {
	case tailor.CreatedByAI, tailor.CreatedByHuman, tailor.CreatedByHumanEditedAI:
	default:
		return tailor.Variant{}, fmt.Errorf("unknown created_by %q", in.CreatedBy)
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	return tailor.Variant{
		ID:           id,
		Content:      in.Content,
		FilledGapRef: in.FilledGapRef,
		TargetLabel:  in.TargetLabel,
		CreatedBy:    creator,
		Tags:         in.Tags,
	}, nil
}

func views(vs []tailor.Variant) []VariantView {
	out := make([]VariantView, len(vs))
	for i, v := range vs {
		out[i] = VariantView{Variant: v, Classification: tailor.Classify(v)}
	}
	return out
}

func (r *Sessions) session(id string) (*Session, error) {
	if err := toolutil.Require("session_id", id); err != nil {
		return nil, err
	}
	return r.Get(id)
}

func (r *Sessions) sessionOpen(_ context.Context, in SessionOpenInput) (SessionOpenOutput, error) {
	if err := toolutil.Require("base_content", in.BaseContent); err != nil {
		return SessionOpenOutput{}, err
	}
	variants := make([]tailor.Variant, 0, len(in.Variants))
	for _, vi := range in.Variants {
		v, err := toVariant(vi)
		if err != nil {
			return SessionOpenOutput{}, err
		}
		variants = append(variants, v)
	}
	sess, err := r.Open(tailor.ContentBlock{ID: in.BlockID, Content: in.BaseContent}, variants)
	if err != nil {
		return SessionOpenOutput{}, err
	}
	return SessionOpenOutput{
		SessionID: sess.ID,
		BlockID:   sess.Variants.Base().ID,
		Variants:  views(sess.Variants.OrderedVariants()),
		State:     sess.Workflow.Snapshot(),
	}, nil
}

func (r *Sessions) variantAdd(_ context.Context, in VariantAddInput) (VariantView, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return VariantView{}, err
	}
	v, err := toVariant(in.Variant)
	if err != nil {
		return VariantView{}, err
	}
	v.CreatedAt = r.deps.Clock.Now().UTC()
	if err := sess.Variants.AddVariant(v); err != nil {
		return VariantView{}, err
	}
	v, _ = sess.Variants.Get(v.ID)
	return VariantView{Variant: v, Classification: tailor.Classify(v)}, nil
}

func (r *Sessions) variantRemove(_ context.Context, in VariantRefInput) (AckOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return AckOutput{}, err
	}
	if in.VariantID == sess.Workflow.Snapshot().SelectedVariantID {
		return AckOutput{State: sess.Workflow.Snapshot()}, errors.New("cannot remove the selected variant; reset the workflow first")
	}
	_, existed := sess.Variants.Get(in.VariantID)
	sess.Variants.RemoveVariant(in.VariantID)
	return AckOutput{Applied: existed, State: sess.Workflow.Snapshot()}, nil
}

func (r *Sessions) variantList(_ context.Context, in VariantListInput) (VariantListOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return VariantListOutput{}, err
	}
	class := tailor.Classification(toolutil.NormKind(in.Classification, ""))
	creator := tailor.Creator(toolutil.NormKind(in.CreatedBy, ""))
	list := sess.Variants.Filter(func(v tailor.Variant) bool {
		return (class == "" || tailor.Classify(v) == class) &&
			(in.Tag == "" || v.HasTag(in.Tag)) &&
			(creator == "" || v.CreatedBy == creator)
	})
	return VariantListOutput{
		Base:     sess.Variants.Base(),
		Variants: views(list),
		Total:    sess.Variants.Len(),
	}, nil
}

func (r *Sessions) variantDiff(ctx context.Context, in VariantRefInput) (DiffOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return DiffOutput{}, err
	}
	v, ok := sess.Variants.Get(in.VariantID)
	if !ok {
		return DiffOutput{}, fmt.Errorf("variant %q not found", in.VariantID)
	}
	base := sess.Variants.Base().Content
	mode := toolutil.NormKind(r.deps.DiffMode, "greedy")
	if out, ok := toolutil.CacheLoadJSON[DiffOutput](ctx, "variant_diff", mode, base, v.Content); ok {
		out.VariantID = v.ID
		return out, nil
	}

	tokens, _ := sess.Variants.DiffAgainstBase(v.ID)
	out := DiffOutput{
		VariantID: v.ID,
		Tokens:    tokens,
		Summary:   tailor.Summarize(tokens),
		Rendered:  renderDiff(tokens),
	}
	toolutil.CacheStoreJSON(ctx, out, "variant_diff", mode, base, v.Content)
	return out, nil
}

// renderDiff marks added words as [+word] and removed words as [-word].
func renderDiff(tokens []tailor.DiffToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		switch t.Kind {
		case tailor.DiffAdded:
			parts[i] = "[+" + t.Text + "]"
		case tailor.DiffRemoved:
			parts[i] = "[-" + t.Text + "]"
		default:
			parts[i] = t.Text
		}
	}
	return strings.Join(parts, " ")
}

func (r *Sessions) workflowState(_ context.Context, in SessionRef) (StateOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return StateOutput{}, err
	}
	steps := make([]string, len(tailor.Steps))
	for i, s := range tailor.Steps {
		steps[i] = s.String()
	}
	final, _ := sess.Finalized()
	return StateOutput{
		State:     sess.Workflow.Snapshot(),
		Steps:     steps,
		Events:    sess.Events(),
		Finalized: final,
	}, nil
}

// command runs a state-machine command and reports the resulting state.
func (r *Sessions) command(id string, fn func(*tailor.Controller) bool) (AckOutput, error) {
	sess, err := r.session(id)
	if err != nil {
		return AckOutput{}, err
	}
	applied := fn(sess.Workflow)
	return AckOutput{Applied: applied, State: sess.Workflow.Snapshot()}, nil
}

func (r *Sessions) workflowSelect(_ context.Context, in VariantRefInput) (AckOutput, error) {
	if err := toolutil.Require("variant_id", in.VariantID); err != nil {
		return AckOutput{}, err
	}
	return r.command(in.SessionID, func(c *tailor.Controller) bool { return c.SelectVariant(in.VariantID) })
}

func (r *Sessions) workflowCompleteStep(_ context.Context, in CompleteStepInput) (AckOutput, error) {
	return r.command(in.SessionID, func(c *tailor.Controller) bool { return c.CompleteStep(in.StepIndex) })
}

func (r *Sessions) workflowBack(_ context.Context, in SessionRef) (AckOutput, error) {
	return r.command(in.SessionID, (*tailor.Controller).GoToPreviousStep)
}

func (r *Sessions) workflowReset(ctx context.Context, in SessionRef) (AckOutput, error) {
	return r.command(in.SessionID, func(c *tailor.Controller) bool { return c.Reset(ctx) })
}

func (r *Sessions) workflowTarget(_ context.Context, in TargetInput) (AckOutput, error) {
	return r.command(in.SessionID, func(c *tailor.Controller) bool {
		return c.SetTarget(tailor.Target{
			JobDescription: in.JobDescription,
			Keywords:       in.Keywords,
			Role:           in.Role,
			Level:          in.Level,
		})
	})
}

// analysisKind picks the analysis that belongs to the current step.
func analysisKind(step int) string {
	switch tailor.Step(step) {
	case tailor.StepComplianceAssessment:
		return "compliance"
	case tailor.StepRoleAssessment:
		return "role"
	default:
		return "gaps"
	}
}

func (r *Sessions) workflowAnalyze(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return AnalyzeOutput{}, err
	}
	c := sess.Workflow
	kind := toolutil.NormKind(in.Kind, analysisKind(c.Snapshot().StepIndex))

	out := AnalyzeOutput{Outcomes: make(map[string]tailor.Outcome)}
	run := func(k string) bool { return kind == k || kind == "all" }
	matched := false
	if run("gaps") {
		matched = true
		out.GapAnalysis, out.Outcomes["gaps"] = c.RunGapAnalysis(ctx)
	}
	if run("compliance") {
		matched = true
		out.Compliance, out.Outcomes["compliance"] = c.RunCompliance(ctx)
	}
	if run("role") {
		matched = true
		out.Alignment, out.Outcomes["role"] = c.RunRoleAssessment(ctx)
	}
	if !matched {
		return AnalyzeOutput{}, fmt.Errorf("unknown analysis kind %q (use gaps, compliance, role or all)", in.Kind)
	}
	out.State = c.Snapshot()
	return out, nil
}

func (r *Sessions) workflowGenerate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return GenerateOutput{}, err
	}
	text, outcome := sess.Workflow.Generate(ctx, in.Prompt)
	if outcome != tailor.OutcomeApplied {
		text = ""
	}
	return GenerateOutput{Outcome: outcome, Text: text}, nil
}

func (r *Sessions) workflowApply(_ context.Context, in ApplyInput) (AckOutput, error) {
	return r.command(in.SessionID, func(c *tailor.Controller) bool { return c.ApplyGenerated(in.GapIDs) })
}

func (r *Sessions) workflowEdit(ctx context.Context, in ContentInput) (AckOutput, error) {
	return r.command(in.SessionID, func(c *tailor.Controller) bool { return c.Edit(ctx, in.Content) })
}

func (r *Sessions) workflowRecover(ctx context.Context, in SessionRef) (RecoverOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return RecoverOutput{}, err
	}
	rec, ok := sess.Workflow.RecoverDraft(ctx)
	return RecoverOutput{Found: ok, Recovery: rec}, nil
}

func (r *Sessions) workflowSave(ctx context.Context, in ContentInput) (AckOutput, error) {
	if err := toolutil.Require("content", in.Content); err != nil {
		return AckOutput{}, err
	}
	return r.command(in.SessionID, func(c *tailor.Controller) bool { return c.SaveAndExit(ctx, in.Content) })
}

func (r *Sessions) gapScope(sess *Session, scope string) string {
	if scope == "" {
		return sess.Workflow.GapScope()
	}
	return scope
}

func (r *Sessions) gapAdd(_ context.Context, in GapAddInput) (GapAckOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return GapAckOutput{}, err
	}
	if err := toolutil.Require("id", in.ID, "description", in.Description); err != nil {
		return GapAckOutput{}, err
	}
	sev := tailor.Severity(toolutil.NormKind(in.Severity, string(tailor.SeverityMedium)))
	switch sev {
	case tailor.SeverityHigh, tailor.SeverityMedium, tailor.SeverityLow:
	default:
		return GapAckOutput{}, fmt.Errorf("unknown severity %q", in.Severity)
	}
	scope := r.gapScope(sess, in.Scope)
	board := sess.Workflow.Gaps()
	applied := board.Add(tailor.Gap{
		ID:          in.ID,
		Scope:       scope,
		Severity:    sev,
		Description: in.Description,
		Suggestion:  in.Suggestion,
	})
	status, _ := board.Status(scope, in.ID)
	return GapAckOutput{Applied: applied, Status: status}, nil
}

func (r *Sessions) gapTransition(in GapRefInput, fn func(*tailor.GapBoard, string, string) bool) (GapAckOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return GapAckOutput{}, err
	}
	if err := toolutil.Require("gap_id", in.GapID); err != nil {
		return GapAckOutput{}, err
	}
	scope := r.gapScope(sess, in.Scope)
	board := sess.Workflow.Gaps()
	applied := fn(board, scope, in.GapID)
	status, ok := board.Status(scope, in.GapID)
	if !ok {
		return GapAckOutput{}, fmt.Errorf("gap %q not found in scope %q", in.GapID, scope)
	}
	return GapAckOutput{Applied: applied, Status: status}, nil
}

func (r *Sessions) gapResolve(_ context.Context, in GapRefInput) (GapAckOutput, error) {
	return r.gapTransition(in, (*tailor.GapBoard).Resolve)
}

func (r *Sessions) gapDismiss(_ context.Context, in GapRefInput) (GapAckOutput, error) {
	return r.gapTransition(in, (*tailor.GapBoard).Dismiss)
}

func (r *Sessions) gapList(_ context.Context, in GapListInput) (GapListOutput, error) {
	sess, err := r.session(in.SessionID)
	if err != nil {
		return GapListOutput{}, err
	}
	board := sess.Workflow.Gaps()
	scopes := board.Scopes()
	if in.Scope != "" {
		scopes = []string{in.Scope}
	}
	out := GapListOutput{Gaps: []tailor.Gap{}, OpenCount: board.OpenCount()}
	for _, scope := range scopes {
		for _, g := range board.Gaps(scope) {
			if in.OpenOnly && g.Status != tailor.GapOpen {
				continue
			}
			out.Gaps = append(out.Gaps, g)
		}
	}
	return out, nil
}

func (r *Sessions) sessionClose(_ context.Context, in SessionRef) (CloseOutput, error) {
	if err := toolutil.Require("session_id", in.SessionID); err != nil {
		return CloseOutput{}, err
	}
	if err := r.Close(in.SessionID); err != nil {
		return CloseOutput{}, err
	}
	return CloseOutput{Closed: true, Open: r.Len()}, nil
}
