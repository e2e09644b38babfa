package llmclient

import (
	"context"
	"encoding/json"
	"log/slog"
)

// StubClient is a placeholder Client for tests and local runs that have no
// real LLM provider wired up. It returns a caller-supplied canned response
// for each promptText, or a generic empty-object response if none was
// registered, and it respects context cancellation.
type StubClient struct {
	Responses map[string]string
}

// NewStubClient builds a StubClient. responses maps promptText to the
// literal JSON text Invoke should return for that prompt.
func NewStubClient(responses map[string]string) *StubClient {
	return &StubClient{Responses: responses}
}

// Invoke returns the registered canned response for promptText, logging the
// call via slog. Context cancellation is honored immediately.
func (c *StubClient) Invoke(ctx context.Context, promptText string, input any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	slog.Debug("stub LLM invoke", "prompt_len", len(promptText))

	if resp, ok := c.Responses[promptText]; ok {
		return resp, nil
	}

	encoded, err := json.Marshal(map[string]any{})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
