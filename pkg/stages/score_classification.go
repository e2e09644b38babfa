package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/services"
)

// scoreInput is the classification output Score-Classification and
// Score-Summary both send the LLM for grading.
type scoreInput struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// scoreResponse is the LLM's required JSON shape for a scoring call
// (spec §4.B.3/§4.B.5).
type scoreResponse struct {
	Score           float64 `json:"score"`
	SuggestedPrompt string  `json:"suggested_prompt"`
}

// ScoreClassification requires classified. If fewer than
// Prompt.MinDocumentsForScoring documents of this type exist yet, scoring
// is skipped but the status still advances (spec §4.B.3). Otherwise it asks
// the LLM to grade the classification output and applies the prompt
// evolution rule.
func ScoreClassification(ctx context.Context, deps Deps, documentID string) error {
	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("load document %s: %w", documentID, err))
	}
	if doc.DocumentType == nil {
		return Domain(fmt.Errorf("document %s has no document_type", documentID))
	}
	docType := *doc.DocumentType

	advanced, err := deps.Documents.BeginStage(ctx, documentID, document.StatusClassified, document.StatusScoringClassification)
	if err != nil {
		return Transient(fmt.Errorf("begin score-classification stage: %w", err))
	}
	if !advanced {
		return nil
	}

	count, err := deps.Documents.CountByDocumentType(ctx, docType)
	if err != nil {
		return Transient(fmt.Errorf("count documents of type %s: %w", docType, err))
	}

	if count < deps.Prompt.MinDocumentsForScoring {
		return advanceScored(ctx, deps, documentID, document.StatusScoringClassification, document.StatusScoredClassification)
	}

	active, err := deps.Prompts.GetActive(ctx, prompt.PromptTypeClassifier, nil)
	if err != nil {
		if err == services.ErrNotFound {
			return Domain(fmt.Errorf("no active classifier prompt to score"))
		}
		return Transient(fmt.Errorf("load active classifier prompt: %w", err))
	}

	input := scoreInput{
		DocumentType: docType,
		Confidence:   orZero(doc.ClassificationConfidence),
		Reasoning:    stringOrEmpty(doc.ClassificationReasoning),
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
		return Schema(fmt.Errorf("parse score-classification response: %w", err))
	}

	if _, err := deps.Prompts.Evolve(ctx, active, parsed.Score, parsed.SuggestedPrompt); err != nil {
		return Transient(fmt.Errorf("evolve classifier prompt: %w", err))
	}

	return advanceScored(ctx, deps, documentID, document.StatusScoringClassification, document.StatusScoredClassification)
}

func advanceScored(ctx context.Context, deps Deps, documentID string, from, to document.Status) error {
	_, err := deps.Documents.CompareAndSet(ctx, documentID, from, to, nil)
	if err != nil {
		return Transient(fmt.Errorf("advance document %s %s->%s: %w", documentID, from, to, err))
	}
	return nil
}

func orZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
