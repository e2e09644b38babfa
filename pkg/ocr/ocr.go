// Package ocr defines the core's contract with the OCR provider. The
// provider itself is an out-of-scope external collaborator (spec §1); this
// package specifies the interface the OCR stage task calls through.
package ocr

import "context"

// Result is the OCR provider's response for one extraction call.
type Result struct {
	FullText   string
	Confidence float64
}

// Client extracts text from a document's source folder. Extract is
// idempotent per call and may fail transiently (network, provider 5xx,
// timeout); the OCR stage task classifies such failures for retry.
type Client interface {
	Extract(ctx context.Context, folderPath string) (*Result, error)
}
