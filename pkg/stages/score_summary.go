package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
)

// ScoreSummary requires summarized. It mirrors ScoreClassification for
// summarizer prompts scoped to the document's type (spec §4.B.5), holding
// the same per-document-type lock Summarize holds so a summarizer prompt
// evolution never runs alongside a same-type Summarize. If the
// evolution fires and the replaced prompt has regenerates_on_update=true,
// every file whose members are of this document type is flipped to
// outdated (spec §4.F/§4.H, Open Question (b)'s conservative scope).
func ScoreSummary(ctx context.Context, deps Deps, documentID string) error {
	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("load document %s: %w", documentID, err))
	}
	if doc.DocumentType == nil {
		return Domain(fmt.Errorf("document %s has no document_type", documentID))
	}
	docType := *doc.DocumentType
	summary := stringOrEmpty(doc.Summary)

	lockErr := deps.TypeLocks.WithTypeLock(ctx, docType, func(ctx context.Context) error {
		return scoreSummaryLocked(ctx, deps, documentID, docType, summary)
	})
	if lockErr == typelock.ErrLockTimeout {
		return Transient(lockErr)
	}
	return lockErr
}

func scoreSummaryLocked(ctx context.Context, deps Deps, documentID, docType, summary string) error {
	advanced, err := deps.Documents.BeginStage(ctx, documentID, document.StatusSummarized, document.StatusScoringSummary)
	if err != nil {
		return Transient(fmt.Errorf("begin score-summary stage: %w", err))
	}
	if !advanced {
		return nil
	}

	count, err := deps.Documents.CountByDocumentType(ctx, docType)
	if err != nil {
		return Transient(fmt.Errorf("count documents of type %s: %w", docType, err))
	}

	if count < deps.Prompt.MinDocumentsForScoring {
		return advanceScored(ctx, deps, documentID, document.StatusScoringSummary, document.StatusScoredSummary)
	}

	active, err := deps.Prompts.GetActiveWithFallback(ctx, prompt.PromptTypeSummarizer, docType)
	if err != nil {
		if err == services.ErrNotFound {
			return Domain(fmt.Errorf("no active summarizer prompt to score for %s", docType))
		}
		return Transient(fmt.Errorf("load active summarizer prompt: %w", err))
	}

	input := scoreInput{
		DocumentType: docType,
		Reasoning:    summary,
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

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Schema(fmt.Errorf("parse score-summary response: %w", err))
	}

	result, err := deps.Prompts.Evolve(ctx, active, parsed.Score, parsed.SuggestedPrompt)
	if err != nil {
		return Transient(fmt.Errorf("evolve summarizer prompt: %w", err))
	}
	if result.Evolved && result.RegeneratesOnUpdate {
		if _, err := deps.Files.MarkOutdatedByDocumentType(ctx, docType); err != nil {
			return Transient(fmt.Errorf("cascade-invalidate files for document type %s: %w", docType, err))
		}
	}

	return advanceScored(ctx, deps, documentID, document.StatusScoringSummary, document.StatusScoredSummary)
}
