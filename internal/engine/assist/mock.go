package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
)

// Mock is a deterministic, offline tailor.Assistant built on keyword overlap.
// It stands in for the LLM in demos and tests.
type Mock struct {
	Latency time.Duration // simulated response time per call
	Fail    error         // when set, every call returns it
}

var _ tailor.Assistant = (*Mock)(nil)

// seniorSignals are phrases that read as ownership at senior levels and up.
var seniorSignals = []string{
	"led", "owned", "architected", "designed", "mentored", "drove",
	"launched", "scaled", "reduced", "increased", "grew", "%",
}

func (m *Mock) wait(ctx context.Context) error {
	if m.Fail != nil {
		return m.Fail
	}
	if m.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AnalyzeGaps turns the job keywords missing from content into gaps.
// The first two are high severity, the next two medium, the rest low.
func (m *Mock) AnalyzeGaps(ctx context.Context, content, jobDescription string, variants []tailor.Variant) (*tailor.GapAnalysisResult, error) {
	content = plainContent(content)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	jd := cleanJD(jobDescription)
	if jd == "" {
		return nil, errors.New("analyze_gaps: job description is required")
	}

	covered := make(map[string]bool)
	for _, v := range variants {
		if tailor.Classify(v) == tailor.ClassGapFill {
			covered[v.FilledGapRef] = true
		}
	}

	score, matching, missing := tailor.OverlapScore(content, jd)
	res := &tailor.GapAnalysisResult{MatchScore: score, MatchingSkills: matching}
	for _, kw := range missing {
		id := "missing-" + slug(kw)
		if covered[id] {
			continue
		}
		sev := tailor.SeverityLow
		switch n := len(res.Gaps); {
		case n < 2:
			sev = tailor.SeverityHigh
		case n < 4:
			sev = tailor.SeverityMedium
		}
		res.Gaps = append(res.Gaps, tailor.GapFinding{
			ID:          id,
			Severity:    sev,
			Description: fmt.Sprintf("The job asks for %q but the content never mentions it.", kw),
			Suggestion:  fmt.Sprintf("Add a concrete example of work involving %s.", kw),
		})
		if len(res.Gaps) == 6 {
			break
		}
	}
	if !hasNumber(content) {
		res.Gaps = append(res.Gaps, tailor.GapFinding{
			ID:          "missing-metrics",
			Severity:    tailor.SeverityMedium,
			Description: "The content has no measurable outcome.",
			Suggestion:  "Quantify the result with a number, percentage or timeframe.",
		})
	}
	res.Summary = fmt.Sprintf("Keyword overlap %.1f%% with %d gaps found.", score, len(res.Gaps))
	return res, nil
}

func hasNumber(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// ScoreCompliance returns the share of keywords present in content.
func (m *Mock) ScoreCompliance(ctx context.Context, content string, keywords []string) (*tailor.ComplianceScore, error) {
	content = plainContent(content)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	matched, missing := tailor.MatchKeywords(content, keywords)
	res := &tailor.ComplianceScore{
		Score:           percent(len(matched), len(matched)+len(missing)),
		MatchedKeywords: matched,
		MissingKeywords: missing,
	}
	for _, kw := range missing {
		res.Suggestions = append(res.Suggestions, "Mention "+kw+" where it applies.")
	}
	return res, nil
}

// ScoreRoleAlignment rewards role keywords and, for senior levels, ownership verbs.
func (m *Mock) ScoreRoleAlignment(ctx context.Context, content, role, level string) (*tailor.AlignmentResult, error) {
	content = plainContent(content)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(role) == "" {
		return nil, errors.New("score_role_alignment: role is required")
	}
	lower := strings.ToLower(content)
	res := &tailor.AlignmentResult{}

	roleScore, matching, missing := tailor.OverlapScore(content, role)
	for _, kw := range matching {
		res.Strengths = append(res.Strengths, "Mentions "+kw)
	}
	for _, kw := range missing {
		res.Weaknesses = append(res.Weaknesses, "No evidence of "+kw)
	}

	hits := 0
	for _, sig := range seniorSignals {
		if strings.Contains(lower, sig) {
			hits++
		}
	}
	signalScore := percent(min(hits, 4), 4)

	switch strings.ToLower(level) {
	case "senior", "staff", "principal", "lead":
		res.Score = 0.4*roleScore + 0.6*signalScore
		if hits < 2 {
			res.Suggestions = append(res.Suggestions, "Show ownership: lead with what you drove and its measurable impact.")
		}
	default:
		res.Score = 0.7*roleScore + 0.3*signalScore
	}
	res.Score = float64(int(res.Score*10+0.5)) / 10
	if hits > 0 {
		res.Strengths = append(res.Strengths, fmt.Sprintf("%d ownership signals", hits))
	}
	return res, nil
}

// GenerateContent appends one sentence per open gap to the base content.
func (m *Mock) GenerateContent(ctx context.Context, prompt string, gen tailor.GenerationContext) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	base := gen.BaseContent
	if gen.Variant != nil && gen.Variant.Content != "" {
		base = gen.Variant.Content
	}
	parts := []string{strings.TrimSpace(base)}
	for _, g := range gen.OpenGaps {
		if g.Suggestion != "" {
			parts = append(parts, g.Suggestion)
		}
	}
	if p := strings.TrimSpace(prompt); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " "), nil
}
