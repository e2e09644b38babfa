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
)

// classifyInput is what Classify sends the LLM.
type classifyInput struct {
	ExtractedText      string   `json:"extracted_text"`
	KnownDocumentTypes []string `json:"known_document_types"`
	PopularTags        []string `json:"popular_tags"`
}

// classifyResponse is the LLM's required JSON shape (spec §4.B.2).
type classifyResponse struct {
	DocumentType string   `json:"document_type"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Tags         []string `json:"tags"`
}

// Classify requires ocr_completed. It asks the LLM to classify the
// extracted text against the known document types and popular tags, writes
// the classification fields, tags the document with its type (system) and
// the LLM-returned tags, and advances to classified (spec §4.B.2).
func Classify(ctx context.Context, deps Deps, documentID string) error {
	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("load document %s: %w", documentID, err))
	}
	if doc.ExtractedText == nil {
		return Domain(fmt.Errorf("document %s has no extracted text", documentID))
	}

	advanced, err := deps.Documents.BeginStage(ctx, documentID, document.StatusOcrCompleted, document.StatusClassifying)
	if err != nil {
		return Transient(fmt.Errorf("begin classify stage: %w", err))
	}
	if !advanced {
		return nil
	}

	active, err := deps.Prompts.GetActive(ctx, prompt.PromptTypeClassifier, nil)
	if err != nil {
		if err == services.ErrNotFound {
			return Domain(fmt.Errorf("no active classifier prompt"))
		}
		return Transient(fmt.Errorf("load active classifier prompt: %w", err))
	}

	popularTags, err := deps.Tags.PopularTags(ctx, deps.Prompt.PopularTagLimit)
	if err != nil {
		return Transient(fmt.Errorf("load popular tags: %w", err))
	}

	input := classifyInput{
		ExtractedText:      *doc.ExtractedText,
		KnownDocumentTypes: deps.Prompt.KnownDocumentTypes,
		PopularTags:        popularTags,
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

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Schema(fmt.Errorf("parse classify response: %w", err))
	}
	if parsed.DocumentType == "" {
		return Schema(fmt.Errorf("classify response missing document_type"))
	}

	_, err = deps.Documents.CompareAndSet(ctx, documentID, document.StatusClassifying, document.StatusClassified,
		func(u *ent.DocumentUpdate) {
			u.SetDocumentType(parsed.DocumentType).
				SetClassificationConfidence(parsed.Confidence).
				SetClassificationReasoning(parsed.Reasoning)
		})
	if err != nil {
		return Transient(fmt.Errorf("advance to classified: %w", err))
	}

	if err := deps.Tags.AttachTag(ctx, documentID, parsed.DocumentType, services.SourceSystem); err != nil {
		return Transient(fmt.Errorf("attach document-type tag: %w", err))
	}
	for _, t := range parsed.Tags {
		if err := deps.Tags.AttachTag(ctx, documentID, t, services.SourceLLM); err != nil {
			return Transient(fmt.Errorf("attach llm tag %q: %w", t, err))
		}
	}

	if err := invalidateDrift(ctx, deps, documentID); err != nil {
		return Transient(fmt.Errorf("invalidate files on tag drift: %w", err))
	}

	return nil
}

// invalidateDrift re-reads a document's current tag set and applies the
// series engine's tag-drift reaction (spec §4.I.2) against every llm-file it
// already belongs to. Called from any stage that changes the document's
// tag membership.
func invalidateDrift(ctx context.Context, deps Deps, documentID string) error {
	current, err := deps.Tags.TagsForDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("reload tags for document %s: %w", documentID, err)
	}
	currentSet := make(map[string]struct{}, len(current))
	for _, t := range current {
		currentSet[t] = struct{}{}
	}
	_, err = deps.Files.InvalidateForTagDrift(ctx, documentID, currentSet)
	return err
}
