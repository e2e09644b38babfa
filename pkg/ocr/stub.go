package ocr

import (
	"context"
	"log/slog"
)

// StubClient is a placeholder Client for tests and local runs without a
// real OCR provider. It returns canned text for any folder, respecting
// context cancellation.
type StubClient struct {
	Text       string
	Confidence float64
}

// NewStubClient builds a StubClient that always returns the given text and
// confidence.
func NewStubClient(text string, confidence float64) *StubClient {
	return &StubClient{Text: text, Confidence: confidence}
}

// Extract returns the stub's canned result, logging the call.
func (c *StubClient) Extract(ctx context.Context, folderPath string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Debug("stub OCR extract", "folder_path", folderPath)
	return &Result{FullText: c.Text, Confidence: c.Confidence}, nil
}
