// Package llmclient defines the core's contract with the LLM provider.
// The provider itself is an out-of-scope external collaborator; this
// package only specifies the interface stage tasks call through and a
// stub implementation for tests and local runs without a real provider.
package llmclient

import "context"

// Client invokes an LLM with a named prompt and a JSON-encodable input,
// returning the raw JSON text response each stage parses into its own
// typed record. A Client must be safe for concurrent use: it is shared
// read-only across every stage task in the process.
type Client interface {
	// Invoke sends promptText plus input to the model and returns the
	// response body as text. Stages are responsible for parsing it into
	// their expected JSON schema (see the per-stage contracts).
	Invoke(ctx context.Context, promptText string, input any) (string, error)
}
