package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// ErrLLMUnavailable is returned when no LLM client has been configured.
var ErrLLMUnavailable = errors.New("llm: client not configured (set LLM_API_KEY)")

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a prompt using the configured temperature and max_tokens.
func CallLLM(ctx context.Context, prompt string) (string, error) {
	if cfg.LLMClient == nil {
		return "", ErrLLMUnavailable
	}
	metrics.LLMCalls.Add(1)
	resp, err := cfg.LLMClient.Complete(ctx, "", prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// CallLLMCreative sends a prompt with a higher temperature, for prose generation.
func CallLLMCreative(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if cfg.LLMClient == nil {
		return "", ErrLLMUnavailable
	}
	metrics.LLMCalls.Add(1)
	resp, err := cfg.LLMClient.Complete(ctx, "", prompt,
		llm.WithChatTemperature(0.7),
		llm.WithChatMaxTokens(maxTokens),
	)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// CallLLMJSON sends a prompt and decodes the fenced-or-bare JSON answer into T.
func CallLLMJSON[T any](ctx context.Context, prompt string) (*T, error) {
	raw, err := CallLLM(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("llm parse: %w (raw: %s)", err, TruncateRunes(raw, 200, "..."))
	}
	return &out, nil
}
