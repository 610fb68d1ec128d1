package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	LLMCalls         atomic.Int64
	LLMErrors        atomic.Int64
	Analyses         atomic.Int64
	AnalysisFailures atomic.Int64
	StaleResults     atomic.Int64
	GapsResolved     atomic.Int64
	GapsDismissed    atomic.Int64
	DraftsSaved      atomic.Int64
	DraftSaveErrors  atomic.Int64
	DraftsRecovered  atomic.Int64
	DraftsDiscarded  atomic.Int64
	ContentFinalized atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"llm_calls":         metrics.LLMCalls.Load(),
		"llm_errors":        metrics.LLMErrors.Load(),
		"analyses":          metrics.Analyses.Load(),
		"analysis_failures": metrics.AnalysisFailures.Load(),
		"stale_results":     metrics.StaleResults.Load(),
		"gaps_resolved":     metrics.GapsResolved.Load(),
		"gaps_dismissed":    metrics.GapsDismissed.Load(),
		"drafts_saved":      metrics.DraftsSaved.Load(),
		"draft_save_errors": metrics.DraftSaveErrors.Load(),
		"drafts_recovered":  metrics.DraftsRecovered.Load(),
		"drafts_discarded":  metrics.DraftsDiscarded.Load(),
		"content_finalized": metrics.ContentFinalized.Load(),
		"cache_hits":        hits,
		"cache_misses":      misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"llm_calls", "llm_errors",
		"analyses", "analysis_failures", "stale_results",
		"gaps_resolved", "gaps_dismissed",
		"drafts_saved", "draft_save_errors", "drafts_recovered", "drafts_discarded",
		"content_finalized",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for tailor/ and assist/ sub-packages.
func IncrAnalyses()         { metrics.Analyses.Add(1) }
func IncrAnalysisFailures() { metrics.AnalysisFailures.Add(1) }
func IncrStaleResults()     { metrics.StaleResults.Add(1) }
func IncrGapsResolved()     { metrics.GapsResolved.Add(1) }
func IncrGapsDismissed()    { metrics.GapsDismissed.Add(1) }
func IncrDraftsSaved()      { metrics.DraftsSaved.Add(1) }
func IncrDraftSaveErrors()  { metrics.DraftSaveErrors.Add(1) }
func IncrDraftsRecovered()  { metrics.DraftsRecovered.Add(1) }
func IncrDraftsDiscarded()  { metrics.DraftsDiscarded.Add(1) }
func IncrContentFinalized() { metrics.ContentFinalized.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
