package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/tagnorm"
)

// seriesDetectInput is what File sends the series-detector LLM.
type seriesDetectInput struct {
	Summary        string                 `json:"summary"`
	DocumentType   string                 `json:"document_type"`
	StructuredData map[string]interface{} `json:"structured_data"`
	Tags           []string               `json:"tags"`
}

// seriesDetectResponse is the LLM's required JSON shape (spec §4.B.6).
type seriesDetectResponse struct {
	Entity      string                 `json:"entity"`
	SeriesType  string                 `json:"series_type"`
	Frequency   string                 `json:"frequency"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// File requires scored_summary. It detects the document's recurring series,
// tags the document with the synthetic series:<slug> tag, finds-or-creates
// the matching llm-sourced single-tag file and associates the document
// with it, and advances to filed (spec §4.B.6).
func File(ctx context.Context, deps Deps, documentID string) error {
	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("load document %s: %w", documentID, err))
	}
	if doc.DocumentType == nil {
		return Domain(fmt.Errorf("document %s has no document_type", documentID))
	}

	advanced, err := deps.Documents.BeginStage(ctx, documentID, document.StatusScoredSummary, document.StatusFiling)
	if err != nil {
		return Transient(fmt.Errorf("begin file stage: %w", err))
	}
	if !advanced {
		return nil
	}

	tags, err := deps.Tags.TagsForDocument(ctx, documentID)
	if err != nil {
		return Transient(fmt.Errorf("load tags for document %s: %w", documentID, err))
	}

	active, err := deps.Prompts.GetActive(ctx, prompt.PromptTypeSeriesDetector, nil)
	if err != nil {
		if err == services.ErrNotFound {
			return Domain(fmt.Errorf("no active series_detector prompt"))
		}
		return Transient(fmt.Errorf("load active series_detector prompt: %w", err))
	}

	input := seriesDetectInput{
		Summary:        stringOrEmpty(doc.Summary),
		DocumentType:   *doc.DocumentType,
		StructuredData: doc.StructuredData,
		Tags:           tags,
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

	var parsed seriesDetectResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Schema(fmt.Errorf("parse series-detect response: %w", err))
	}
	if parsed.Entity == "" || parsed.SeriesType == "" {
		return Schema(fmt.Errorf("series-detect response missing entity or series_type"))
	}

	ser, err := deps.Series.FindOrCreate(ctx, services.SeriesRecord{
		Entity:      parsed.Entity,
		SeriesType:  parsed.SeriesType,
		Frequency:   parsed.Frequency,
		Title:       parsed.Title,
		Description: parsed.Description,
		Metadata:    parsed.Metadata,
	})
	if err != nil {
		return Transient(fmt.Errorf("find-or-create series: %w", err))
	}

	if err := deps.Series.AddMembership(ctx, documentID, ser.ID, doc.CreatedAt); err != nil {
		return Transient(fmt.Errorf("add series membership: %w", err))
	}

	seriesTag := tagnorm.SeriesTag(parsed.Entity)
	if err := deps.Tags.AttachTag(ctx, documentID, seriesTag, services.SourceSystem); err != nil {
		return Transient(fmt.Errorf("attach series tag: %w", err))
	}
	if err := invalidateDrift(ctx, deps, documentID); err != nil {
		return Transient(fmt.Errorf("invalidate files on tag drift: %w", err))
	}

	_, signature := tagnorm.Signature([]string{seriesTag})
	f, _, err := deps.Files.FindOrCreateBySignature(ctx, []string{seriesTag}, signature)
	if err != nil {
		return Transient(fmt.Errorf("find-or-create series file: %w", err))
	}
	if err := deps.Files.AddMember(ctx, f.ID, documentID); err != nil {
		return Transient(fmt.Errorf("associate document with series file: %w", err))
	}

	_, err = deps.Documents.CompareAndSet(ctx, documentID, document.StatusFiling, document.StatusFiled, nil)
	if err != nil {
		return Transient(fmt.Errorf("advance to filed: %w", err))
	}
	return nil
}
