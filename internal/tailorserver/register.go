// Package tailorserver exposes the tailoring workflow as MCP tools.
package tailorserver

import (
	"context"

	"github.com/anatolykoptev/go_tailor/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolCount is the number of tools added by RegisterTools.
const ToolCount = 22

// RegisterTools registers the session, variant, workflow and gap tools on the given MCP server.
func RegisterTools(server *mcp.Server, sessions *Sessions) {
	registerSessionTools(server, sessions)
	registerVariantTools(server, sessions)
	registerWorkflowTools(server, sessions)
	registerGapTools(server, sessions)
}

// handle adapts a plain handler to the MCP tool signature and logs slow calls.
func handle[In, Out any](name string, fn func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		var out Out
		err := engine.TrackOperation(ctx, name, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, input)
			return err
		})
		return nil, out, err
	}
}

func registerSessionTools(server *mcp.Server, s *Sessions) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_open",
		Description: "Open a tailoring session over one content block (a reusable story or paragraph) and its variants. Returns the session id, the variants in display order (gap-fill, then job-target, then fallback) and the initial workflow state.",
	}, handle("session_open", s.sessionOpen))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_close",
		Description: "Close a tailoring session. Pending gap timers are cancelled and late assistant results are dropped. Drafts stay in the draft store.",
	}, handle("session_close", s.sessionClose))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_state",
		Description: "Return the current workflow state of a session: step, status, selected variant, analysis results, editing content, open gap count, and the recent event log.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle("workflow_state", s.workflowState))
}

func registerVariantTools(server *mcp.Server, s *Sessions) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "variant_add",
		Description: "Add a variant to a session's content block. Variant ids must be unique within the block. A variant with filled_gap_ref is a gap-fill, one with target_label is a job-target, anything else is a fallback.",
	}, handle("variant_add", s.variantAdd))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "variant_remove",
		Description: "Remove a variant by id. Removing an unknown id does nothing. The currently selected variant cannot be removed.",
	}, handle("variant_remove", s.variantRemove))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "variant_list",
		Description: "List a session's variants in display order. Optional filters: classification (gap-fill, job-target, fallback), tag, created_by (ai, human, human-edited-ai).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle("variant_list", s.variantList))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "variant_diff",
		Description: "Word-level diff of a variant against the base content. Returns tagged tokens (unchanged, added, removed), counts, and a rendered string with [+added] and [-removed] markers.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle("variant_diff", s.variantDiff))
}

func registerWorkflowTools(server *mcp.Server, s *Sessions) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_select",
		Description: "Select the variant to tailor. Allowed up to the content generation step; selecting on the first step advances to gap analysis.",
	}, handle("workflow_select", s.workflowSelect))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_complete_step",
		Description: "Complete the current step and advance. step_index must equal the current step and a variant must be selected. Completing the last step moves the workflow to reviewing.",
	}, handle("workflow_complete_step", s.workflowCompleteStep))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_back",
		Description: "Go back one step. Does nothing on the first step or after the workflow ended.",
	}, handle("workflow_back", s.workflowBack))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_reset",
		Description: "Reset the workflow to its initial state. Results of in-flight assistant calls are discarded and all gaps are cleared.",
	}, handle("workflow_reset", s.workflowReset))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_target",
		Description: "Set the tailoring target: job description, keywords, role and level. Keywords default to those extracted from the job description.",
	}, handle("workflow_target", s.workflowTarget))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_analyze",
		Description: "Run an assistant analysis on the selected variant: gaps (adds findings to the gap tracker), compliance (keyword ATS score), role (seniority alignment) or all. Defaults to the analysis of the current step. Each result reports applied, unavailable, stale or rejected.",
	}, handle("workflow_analyze", s.workflowAnalyze))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_generate",
		Description: "Generate tailored content for the selected variant, addressing the open gaps. An optional prompt adds instructions. Only the result of the newest request is kept.",
	}, handle("workflow_generate", s.workflowGenerate))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_apply",
		Description: "Apply the generated content and resolve the gaps it addresses. Defaults to the gaps that were open when the content was generated.",
	}, handle("workflow_apply", s.workflowApply))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_edit",
		Description: "Replace the editing content on the review step. Edits that differ from the selected variant are autosaved as a draft.",
	}, handle("workflow_edit", s.workflowEdit))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_recover",
		Description: "Look up an unexpired draft for the selected variant and restore it into the editor. Stale drafts are discarded.",
	}, handle("workflow_recover", s.workflowRecover))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_save",
		Description: "Save the final content and end the workflow. Only valid on the review step. Clears the draft and emits the content once.",
	}, handle("workflow_save", s.workflowSave))
}

func registerGapTools(server *mcp.Server, s *Sessions) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "gap_add",
		Description: "Add a gap to a scope. Adding an id that already exists does nothing. Severity is high, medium or low.",
	}, handle("gap_add", s.gapAdd))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gap_resolve",
		Description: "Mark an open gap as resolved. It is dismissed automatically after a short delay unless dismissed first.",
	}, handle("gap_resolve", s.gapResolve))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gap_dismiss",
		Description: "Dismiss a resolved gap now instead of waiting for the automatic dismissal. Open gaps must be resolved first.",
	}, handle("gap_dismiss", s.gapDismiss))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gap_list",
		Description: "List tracked gaps with their status, grouped by scope. Optionally only open gaps.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handle("gap_list", s.gapList))
}
