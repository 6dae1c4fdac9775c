package llm

import (
	"context"
	"encoding/json"
	"strings"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// CompleteJSON runs a JSON-mode completion and unmarshals the response
// into T. Models occasionally wrap JSON in markdown fences even in JSON
// mode; those are stripped before parsing.
func CompleteJSON[T any](ctx context.Context, g Generator, req Request) (T, error) {
	var result T

	req.JSONMode = true
	raw, err := g.Complete(ctx, req)
	if err != nil {
		return result, err
	}

	cleaned := stripCodeFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return result, scherrors.Wrapf(err, scherrors.ErrCodeLLMBadOutput,
			"response is not valid JSON: %.120s", cleaned)
	}
	return result, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
