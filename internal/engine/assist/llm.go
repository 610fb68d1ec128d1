// Package assist provides the analysis and generation collaborators used by
// the tailoring workflow: an LLM-backed assistant and a deterministic mock.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_tailor/internal/engine"
	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
)

// LLM implements tailor.Assistant on top of the configured chat model.
// Keyword scores are computed locally; the model only adds judgement and prose.
type LLM struct {
	limiter  *rate.Limiter
	retry    engine.RetryConfig
	maxChars int
}

// NewLLM creates an LLM assistant limited to perMinute calls (0 = unlimited).
func NewLLM(perMinute int) *LLM {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	maxChars := engine.Cfg.MaxContentChars
	if maxChars <= 0 {
		maxChars = 6000
	}
	return &LLM{limiter: lim, retry: engine.DefaultRetryConfig, maxChars: maxChars}
}

var _ tailor.Assistant = (*LLM)(nil)

// retryable reports whether an LLM failure is worth another attempt.
func retryable(err error) bool {
	return !errors.Is(err, engine.ErrLLMUnavailable) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func callJSON[T any](ctx context.Context, a *LLM, prompt string) (*T, error) {
	return engine.RetryDo(ctx, a.retry, func() (*T, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := engine.CallLLMJSON[T](ctx, prompt)
		if err != nil && retryable(err) {
			return nil, engine.Transient(err)
		}
		return out, err
	})
}

func (a *LLM) callText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return engine.RetryDo(ctx, a.retry, func() (string, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, err := engine.CallLLMCreative(ctx, prompt, maxTokens)
		if err != nil && retryable(err) {
			return "", engine.Transient(err)
		}
		return out, err
	})
}

// plainContent strips markup pasted from rich-text editors before scoring.
func plainContent(s string) string {
	return strings.TrimSpace(engine.PlainText(s))
}

// cleanJD turns an HTML or markdown job posting into plain text.
func cleanJD(jd string) string {
	if engine.LooksLikeHTML(jd) {
		jd = engine.NormalizeJobDescription(jd)
	}
	return strings.TrimSpace(jd)
}

const gapAnalysisPrompt = `You are a career coach reviewing one paragraph of a candidate's story against a job description.

CONTENT:
%s

JOB DESCRIPTION:
%s

EXISTING VARIANTS:
%s

COMPUTED MATCH SCORE: %.1f
MATCHING KEYWORDS: %s
MISSING KEYWORDS: %s

Identify the gaps that keep this content from convincing a hiring manager for this job.
A gap is a missing skill, missing measurable outcome, weak verb, or unclear scope.
Skip gaps that an existing variant already fills.

For each gap:
1. "id": a short kebab-case identifier (e.g. "missing-metrics")
2. "severity": "high" (explicit requirement not shown), "medium" (important but implied), or "low" (polish)
3. "description": one sentence naming the shortfall
4. "suggestion": one concrete rewrite hint

Return a JSON object with this exact structure:
{
  "match_score": <echo back the computed match score>,
  "matching_skills": <echo back the matching keywords as an array>,
  "gaps": [
    {"id": "<id>", "severity": "<high|medium|low>", "description": "<text>", "suggestion": "<text>"}
  ],
  "summary": "<2-3 sentence fit assessment>"
}

Return ONLY the JSON object, no markdown, no explanation.`

// AnalyzeGaps reports gaps between content and a job description.
func (a *LLM) AnalyzeGaps(ctx context.Context, content, jobDescription string, variants []tailor.Variant) (*tailor.GapAnalysisResult, error) {
	content = plainContent(content)
	jd := cleanJD(jobDescription)
	if jd == "" {
		return nil, errors.New("analyze_gaps: job description is required")
	}
	key := engine.CacheKey("gaps", content, jd, variantDigest(variants))
	if cached, ok := engine.CacheLoadJSON[tailor.GapAnalysisResult](ctx, key); ok {
		return &cached, nil
	}

	score, matching, missing := tailor.OverlapScore(content, jd)
	prompt := fmt.Sprintf(gapAnalysisPrompt,
		engine.TruncateRunes(content, a.maxChars, ""),
		engine.TruncateRunes(jd, 3000, ""),
		variantDigest(variants),
		score,
		strings.Join(matching, ", "),
		strings.Join(missing, ", "),
	)

	result, err := callJSON[tailor.GapAnalysisResult](ctx, a, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze_gaps LLM: %w", err)
	}

	// Override with computed values; do not trust the model for these.
	result.MatchScore = score
	result.MatchingSkills = matching
	result.Gaps = normalizeFindings(result.Gaps)

	engine.CacheStoreJSON(ctx, key, *result)
	return result, nil
}

func variantDigest(variants []tailor.Variant) string {
	if len(variants) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, v := range variants {
		fmt.Fprintf(&sb, "- [%s] %s\n", tailor.Classify(v), engine.TruncateAtWord(v.Content, 200))
	}
	return strings.TrimSpace(sb.String())
}

// normalizeFindings fills missing ids and clamps unknown severities.
func normalizeFindings(in []tailor.GapFinding) []tailor.GapFinding {
	seen := make(map[string]bool, len(in))
	out := make([]tailor.GapFinding, 0, len(in))
	for i, g := range in {
		if strings.TrimSpace(g.Description) == "" {
			continue
		}
		g.ID = slug(g.ID)
		if g.ID == "" || seen[g.ID] {
			g.ID = fmt.Sprintf("gap-%d", i+1)
		}
		seen[g.ID] = true
		switch g.Severity {
		case tailor.SeverityHigh, tailor.SeverityMedium, tailor.SeverityLow:
		default:
			g.Severity = tailor.SeverityMedium
		}
		out = append(out, g)
	}
	return out
}

func slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

const complianceSuggestPrompt = `You are an ATS (applicant tracking system) optimization expert.

CONTENT:
%s

MISSING KEYWORDS: %s

Suggest up to 5 short, specific edits that would work the missing keywords into the content truthfully.
Return a JSON array of strings. Return ONLY the JSON array.`

// ScoreCompliance scores keyword coverage. The score is computed locally;
// the model only contributes suggestions and is skipped when nothing is missing.
func (a *LLM) ScoreCompliance(ctx context.Context, content string, keywords []string) (*tailor.ComplianceScore, error) {
	content = plainContent(content)
	matched, missing := tailor.MatchKeywords(content, keywords)
	res := &tailor.ComplianceScore{
		Score:           percent(len(matched), len(matched)+len(missing)),
		MatchedKeywords: matched,
		MissingKeywords: missing,
	}
	if len(missing) == 0 {
		return res, nil
	}

	prompt := fmt.Sprintf(complianceSuggestPrompt,
		engine.TruncateRunes(content, a.maxChars, ""), strings.Join(missing, ", "))
	suggestions, err := callJSON[[]string](ctx, a, prompt)
	if err != nil {
		slog.Warn("compliance suggestions unavailable", slog.Any("error", err))
		return res, nil
	}
	res.Suggestions = *suggestions
	return res, nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	raw := float64(n) / float64(total) * 100
	return float64(int(raw*10+0.5)) / 10
}

const rolePrompt = `You are a hiring manager for a %s position at the %s level.

CONTENT:
%s

Score 0-100 how well this content demonstrates the scope, ownership and impact expected at that level.
List concrete strengths, weaknesses, and suggestions (max 4 each).

Return a JSON object with this exact structure:
{"score": <0-100>, "strengths": ["..."], "weaknesses": ["..."], "suggestions": ["..."]}

Return ONLY the JSON object, no markdown, no explanation.`

// ScoreRoleAlignment asks the model how well content fits a role and level.
func (a *LLM) ScoreRoleAlignment(ctx context.Context, content, role, level string) (*tailor.AlignmentResult, error) {
	content = plainContent(content)
	if strings.TrimSpace(role) == "" {
		return nil, errors.New("score_role_alignment: role is required")
	}
	if level == "" {
		level = "mid"
	}
	key := engine.CacheKey("role", content, role, level)
	if cached, ok := engine.CacheLoadJSON[tailor.AlignmentResult](ctx, key); ok {
		return &cached, nil
	}

	prompt := fmt.Sprintf(rolePrompt, role, level, engine.TruncateRunes(content, a.maxChars, ""))
	res, err := callJSON[tailor.AlignmentResult](ctx, a, prompt)
	if err != nil {
		return nil, fmt.Errorf("score_role_alignment LLM: %w", err)
	}
	res.Score = min(max(res.Score, 0), 100)

	engine.CacheStoreJSON(ctx, key, *res)
	return res, nil
}

const generatePrompt = `You are a resume writer rewriting one paragraph of a candidate's story.

CURRENT CONTENT:
%s
%s%s
OPEN GAPS TO ADDRESS:
%s

INSTRUCTIONS FROM THE CANDIDATE:
%s

Rules:
- Keep every claim truthful to the current content; never invent employers, numbers or titles.
- Prefer strong verbs and measurable outcomes.
- Keep roughly the same length.

Return ONLY the rewritten paragraph as plain text.`

// GenerateContent rewrites the content to address the open gaps.
func (a *LLM) GenerateContent(ctx context.Context, prompt string, gen tailor.GenerationContext) (string, error) {
	var variant, target string
	if gen.Variant != nil && gen.Variant.Content != gen.BaseContent {
		variant = "\nSELECTED VARIANT:\n" + engine.TruncateRunes(gen.Variant.Content, a.maxChars, "") + "\n"
	}
	if gen.Target.Role != "" || gen.Target.JobDescription != "" {
		target = fmt.Sprintf("\nTARGET: %s %s\n%s\n", gen.Target.Level, gen.Target.Role,
			engine.TruncateRunes(cleanJD(gen.Target.JobDescription), 1500, ""))
	}
	var gaps strings.Builder
	for _, g := range gen.OpenGaps {
		fmt.Fprintf(&gaps, "- [%s] %s (%s)\n", g.Severity, g.Description, g.Suggestion)
	}
	if gaps.Len() == 0 {
		gaps.WriteString("(none)\n")
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Tighten the paragraph."
	}

	full := fmt.Sprintf(generatePrompt,
		engine.TruncateRunes(gen.BaseContent, a.maxChars, ""), variant, target, gaps.String(), prompt)

	maxTokens := engine.Cfg.LLMMaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	text, err := a.callText(ctx, full, maxTokens)
	if err != nil {
		return "", fmt.Errorf("generate_content LLM: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("generate_content: empty response")
	}
	return text, nil
}
