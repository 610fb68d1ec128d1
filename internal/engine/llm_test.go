package engine

import (
	"context"
	"errors"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare json", raw: `{"score": 80}`, want: `{"score": 80}`},
		{name: "json fence", raw: "```json\n{\"score\": 80}\n```", want: `{"score": 80}`},
		{name: "plain fence", raw: "```\n[1,2]\n```", want: `[1,2]`},
		{name: "whitespace", raw: "  \n text \n", want: "text"},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.raw); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCallLLM_Unavailable(t *testing.T) {
	Init(Config{})
	ctx := context.Background()

	if _, err := CallLLM(ctx, "hi"); !errors.Is(err, ErrLLMUnavailable) {
		t.Errorf("CallLLM err = %v, want ErrLLMUnavailable", err)
	}
	if _, err := CallLLMCreative(ctx, "hi", 100); !errors.Is(err, ErrLLMUnavailable) {
		t.Errorf("CallLLMCreative err = %v, want ErrLLMUnavailable", err)
	}
	type score struct{ Score int }
	if _, err := CallLLMJSON[score](ctx, "hi"); !errors.Is(err, ErrLLMUnavailable) {
		t.Errorf("CallLLMJSON err = %v, want ErrLLMUnavailable", err)
	}
}

func TestInitDefaults(t *testing.T) {
	Init(Config{})
	if Cfg.DraftTTL != DefaultDraftTTL || Cfg.GapAutoDismiss != DefaultGapAutoDismiss {
		t.Errorf("defaults not applied: %+v", *Cfg)
	}
	if Cfg.DiffMode != "greedy" || Cfg.MaxContentChars != 6000 {
		t.Errorf("defaults not applied: %+v", *Cfg)
	}
}
