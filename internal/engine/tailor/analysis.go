package tailor

import "context"

// Target describes what the content is being tailored toward.
type Target struct {
	JobDescription string   `json:"job_description"`
	Keywords       []string `json:"keywords,omitempty"`
	Role           string   `json:"role,omitempty"`
	Level          string   `json:"level,omitempty"`
}

// GapFinding is a gap as reported by an analysis, before tracking.
type GapFinding struct {
	ID          string   `json:"id"`
	Scope       string   `json:"scope,omitempty"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
}

// GapAnalysisResult is the outcome of comparing content with a job description.
type GapAnalysisResult struct {
	MatchScore     float64      `json:"match_score"`
	MatchingSkills []string     `json:"matching_skills"`
	Gaps           []GapFinding `json:"gaps"`
	Summary        string       `json:"summary"`
}

// ComplianceScore is an applicant-tracking-system keyword score.
type ComplianceScore struct {
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// AlignmentResult scores content against a role and seniority level.
type AlignmentResult struct {
	Score       float64  `json:"score"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// GenerationContext carries what the generator may draw on.
type GenerationContext struct {
	BaseContent string       `json:"base_content"`
	Variant     *Variant     `json:"variant,omitempty"`
	Target      Target       `json:"target"`
	OpenGaps    []GapFinding `json:"open_gaps,omitempty"`
}

// Assistant is the analysis and generation collaborator. Implementations may
// be slow or fail; callers treat every error as "unavailable".
type Assistant interface {
	AnalyzeGaps(ctx context.Context, content, jobDescription string, variants []Variant) (*GapAnalysisResult, error)
	ScoreCompliance(ctx context.Context, content string, keywords []string) (*ComplianceScore, error)
	ScoreRoleAlignment(ctx context.Context, content, role, level string) (*AlignmentResult, error)
	GenerateContent(ctx context.Context, prompt string, gen GenerationContext) (string, error)
}
