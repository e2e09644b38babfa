package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
)

// summarizeInput is what Summarize sends the LLM.
type summarizeInput struct {
	ExtractedText string `json:"extracted_text"`
	DocumentType  string `json:"document_type"`
}

// summarizeResponse is the LLM's required JSON shape (spec §4.B.4).
type summarizeResponse struct {
	Summary        string                 `json:"summary"`
	StructuredData map[string]interface{} `json:"structured_data"`
}

// Summarize requires scored_classification (it runs immediately after
// Score-Classification in this flow's sequential ordering of the two
// branches §4.E describes as concurrent — see DESIGN.md) and must hold the
// per-document-type lock
// for the document's type for its entire critical section (spec §4.D,
// §8 invariant 3), since a concurrent Score-Summary evolution for the same
// type could otherwise race a prompt upgrade mid-summarize. It picks the
// active summarizer prompt scoped to the document's type, falling back to
// the generic summarizer, calls the LLM, writes summary + structured_data,
// and advances to summarized.
func Summarize(ctx context.Context, deps Deps, documentID string) error {
	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("load document %s: %w", documentID, err))
	}
	if doc.DocumentType == nil {
		return Domain(fmt.Errorf("document %s has no document_type", documentID))
	}
	docType := *doc.DocumentType

	lockErr := deps.TypeLocks.WithTypeLock(ctx, docType, func(ctx context.Context) error {
		return summarizeLocked(ctx, deps, documentID, docType)
	})
	if lockErr == typelock.ErrLockTimeout {
		return Transient(lockErr)
	}
	return lockErr
}

func summarizeLocked(ctx context.Context, deps Deps, documentID, docType string) error {
	advanced, err := deps.Documents.BeginStage(ctx, documentID, document.StatusScoredClassification, document.StatusSummarizing)
	if err != nil {
		return Transient(fmt.Errorf("begin summarize stage: %w", err))
	}
	if !advanced {
		return nil
	}

	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("reload document %s: %w", documentID, err))
	}

	active, err := deps.Prompts.GetActiveWithFallback(ctx, prompt.PromptTypeSummarizer, docType)
	if err != nil {
		if err == services.ErrNotFound {
			return Domain(fmt.Errorf("no active summarizer prompt for %s (and no generic fallback)", docType))
		}
		return Transient(fmt.Errorf("load active summarizer prompt: %w", err))
	}

	input := summarizeInput{
		ExtractedText: stringOrEmpty(doc.ExtractedText),
		DocumentType:  docType,
	}

	var raw string
	err = deps.Gate.Do(ctx, gate.LLM, func(ctx context.Context) error {
		resp, invokeErr := deps.LLM.Invoke(ctx, active.PromptText, input)
		raw = resp
		return invokeErr
	})
	if err != nil {
		return classifyExternalErr(ctx, err)
	}

	var parsed summarizeResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Schema(fmt.Errorf("parse summarize response: %w", err))
	}
	if parsed.Summary == "" {
		return Schema(fmt.Errorf("summarize response missing summary"))
	}

	_, err = deps.Documents.CompareAndSet(ctx, documentID, document.StatusSummarizing, document.StatusSummarized,
		func(u *ent.DocumentUpdate) {
			u.SetSummary(parsed.Summary).
				SetStructuredData(parsed.StructuredData)
		})
	if err != nil {
		return Transient(fmt.Errorf("advance to summarized: %w", err))
	}
	return nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
