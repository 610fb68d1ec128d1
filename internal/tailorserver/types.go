package tailorserver

import (
	"github.com/anatolykoptev/go_tailor/internal/engine/tailor"
)

// SessionRef addresses an open session.
type SessionRef struct {
	SessionID string `json:"session_id" jsonschema:"session id returned by session_open"`
}

// VariantInput describes a variant to add. An empty id is generated.
type VariantInput struct {
	ID           string   `json:"id,omitempty"`
	Content      string   `json:"content"`
	FilledGapRef string   `json:"filled_gap_ref,omitempty" jsonschema:"id of the gap this variant fills"`
	TargetLabel  string   `json:"target_label,omitempty" jsonschema:"job title or target this variant is written for"`
	CreatedBy    string   `json:"created_by,omitempty" jsonschema:"ai, human or human-edited-ai (default human)"`
	Tags         []string `json:"tags,omitempty"`
}

// SessionOpenInput is the input for session_open.
type SessionOpenInput struct {
	BlockID     string         `json:"block_id,omitempty"`
	BaseContent string         `json:"base_content" jsonschema:"canonical text of the story or paragraph"`
	Variants    []VariantInput `json:"variants,omitempty"`
}

// VariantView is a variant with its derived classification.
type VariantView struct {
	Variant        tailor.Variant        `json:"variant"`
	Classification tailor.Classification `json:"classification"`
}

// SessionOpenOutput is the output for session_open.
type SessionOpenOutput struct {
	SessionID string        `json:"session_id"`
	BlockID   string        `json:"block_id"`
	Variants  []VariantView `json:"variants"`
	State     tailor.State  `json:"state"`
}

// VariantAddInput is the input for variant_add.
type VariantAddInput struct {
	SessionID string       `json:"session_id"`
	Variant   VariantInput `json:"variant"`
}

// VariantRefInput addresses one variant of a session.
type VariantRefInput struct {
	SessionID string `json:"session_id"`
	VariantID string `json:"variant_id"`
}

// VariantListInput is the input for variant_list. Filters combine with AND.
type VariantListInput struct {
	SessionID      string `json:"session_id"`
	Classification string `json:"classification,omitempty" jsonschema:"gap-fill, job-target or fallback"`
	Tag            string `json:"tag,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
}

// VariantListOutput is the output for variant_list, in display order.
type VariantListOutput struct {
	Base     tailor.ContentBlock `json:"base"`
	Variants []VariantView       `json:"variants"`
	Total    int                 `json:"total"`
}

// DiffOutput is the output for variant_diff.
type DiffOutput struct {
	VariantID string             `json:"variant_id"`
	Tokens    []tailor.DiffToken `json:"tokens"`
	Summary   tailor.DiffSummary `json:"summary"`
	Rendered  string             `json:"rendered"`
}

// AckOutput reports whether a command was applied and the resulting state.
type AckOutput struct {
	Applied bool         `json:"applied"`
	State   tailor.State `json:"state"`
}

// StateOutput is the output for workflow_state.
type StateOutput struct {
	State     tailor.State `json:"state"`
	Steps     []string     `json:"steps"`
	Events    []Event      `json:"events"`
	Finalized string       `json:"finalized,omitempty"`
}

// CompleteStepInput is the input for workflow_complete_step.
type CompleteStepInput struct {
	SessionID string `json:"session_id"`
	StepIndex int    `json:"step_index" jsonschema:"index of the current step (0-5)"`
}

// TargetInput is the input for workflow_target.
type TargetInput struct {
	SessionID      string   `json:"session_id"`
	JobDescription string   `json:"job_description,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Role           string   `json:"role,omitempty"`
	Level          string   `json:"level,omitempty"`
}

// AnalyzeInput is the input for workflow_analyze.
type AnalyzeInput struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind,omitempty" jsonschema:"gaps, compliance, role or all (default: by current step)"`
}

// AnalyzeOutput is the output for workflow_analyze.
type AnalyzeOutput struct {
	Outcomes    map[string]tailor.Outcome `json:"outcomes"`
	GapAnalysis *tailor.GapAnalysisResult `json:"gap_analysis,omitempty"`
	Compliance  *tailor.ComplianceScore   `json:"compliance,omitempty"`
	Alignment   *tailor.AlignmentResult   `json:"alignment,omitempty"`
	State       tailor.State              `json:"state"`
}

// GenerateInput is the input for workflow_generate.
type GenerateInput struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt,omitempty"`
}

// GenerateOutput is the output for workflow_generate.
type GenerateOutput struct {
	Outcome tailor.Outcome `json:"outcome"`
	Text    string         `json:"text,omitempty"`
}

// ApplyInput is the input for workflow_apply.
type ApplyInput struct {
	SessionID string   `json:"session_id"`
	GapIDs    []string `json:"gap_ids,omitempty" jsonschema:"gaps the generated text addresses (default: gaps open at generation)"`
}

// ContentInput carries edited or final content.
type ContentInput struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// RecoverOutput is the output for workflow_recover.
type RecoverOutput struct {
	Found    bool             `json:"found"`
	Recovery *tailor.Recovery `json:"recovery,omitempty"`
}

// GapAddInput is the input for gap_add.
type GapAddInput struct {
	SessionID   string `json:"session_id"`
	Scope       string `json:"scope,omitempty" jsonschema:"content scope (default story-content)"`
	ID          string `json:"id"`
	Severity    string `json:"severity,omitempty" jsonschema:"high, medium or low"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// GapRefInput addresses one gap.
type GapRefInput struct {
	SessionID string `json:"session_id"`
	Scope     string `json:"scope,omitempty"`
	GapID     string `json:"gap_id"`
}

// GapAckOutput reports a gap transition.
type GapAckOutput struct {
	Applied bool             `json:"applied"`
	Status  tailor.GapStatus `json:"status,omitempty"`
}

// GapListInput is the input for gap_list.
type GapListInput struct {
	SessionID string `json:"session_id"`
	Scope     string `json:"scope,omitempty" jsonschema:"limit to one scope (default: all scopes)"`
	OpenOnly  bool   `json:"open_only,omitempty"`
}

// GapListOutput is the output for gap_list.
type GapListOutput struct {
	Gaps      []tailor.Gap `json:"gaps"`
	OpenCount int          `json:"open_count"`
}

// CloseOutput is the output for session_close.
type CloseOutput struct {
	Closed bool `json:"closed"`
	Open   int  `json:"open_sessions"`
}
