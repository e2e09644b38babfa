// Package flow sequences the Stage Task Library's individual stages into
// the two DAGs the spec defines: Document Flow (OCR through File) and File
// Flow (File-Summarize). Each flow function runs one document or file id
// to completion or to its next safe resting status, translating a stage's
// classified error into the right State Store write.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/pkg/stages"
)

// documentStage names one step of Document Flow for logging and for
// resolving the entry status to reset to on a transient failure.
type documentStage struct {
	name        string
	entryStatus document.Status
	run         func(ctx context.Context, deps stages.Deps, documentID string) error
}

// documentPipeline is the DAG of 4.E in execution order. The two stages the
// spec describes as running concurrently (Score-Classification, Summarize)
// run sequentially here, Score-Classification first — see DESIGN.md's
// "Parallel-branch simplification" for why a single shared status column
// rules out a literal fan-out.
var documentPipeline = []documentStage{
	{"ocr", document.StatusPending, stages.OCR},
	{"classify", document.StatusOcrCompleted, stages.Classify},
	{"score_classification", document.StatusClassified, stages.ScoreClassification},
	{"summarize", document.StatusScoredClassification, stages.Summarize},
	{"score_summary", document.StatusSummarized, stages.ScoreSummary},
	{"file", document.StatusScoredSummary, stages.File},
}

// RunDocument drives documentID through every Document Flow stage it is
// currently eligible for, skipping every stage whose entry status doesn't
// match the row's current status (already past it, or not yet reached) and
// stopping at the first failure. A failure never propagates as a Go error to the caller: it is
// translated into a status write and RunDocument returns nil so the
// orchestrator's per-tick launch never has to distinguish "a document
// failed" from "a document simply isn't ready yet".
func RunDocument(ctx context.Context, deps stages.Deps, documentID string) error {
	for _, stage := range documentPipeline {
		if err := ctx.Err(); err != nil {
			return nil
		}

		doc, err := deps.Documents.GetByID(ctx, documentID)
		if err != nil {
			slog.Error("document flow: load document", "document_id", documentID, "error", err)
			return nil
		}
		if doc.Status != stage.entryStatus {
			continue
		}

		err = stage.run(ctx, deps, documentID)
		if err == nil {
			continue
		}

		if handleStageErr(ctx, deps, documentID, stage.name, stage.entryStatus, err) {
			return nil
		}
	}

	// Every stage through File succeeded (or was already past); the last
	// remaining transition is the flow-level "mark completed" per §4.E.
	if _, err := deps.Documents.CompareAndSet(ctx, documentID, document.StatusFiled, document.StatusCompleted, nil); err != nil {
		slog.Error("document flow: mark completed", "document_id", documentID, "error", err)
	}
	return nil
}

// handleStageErr classifies a stage error and applies the matching
// DocumentService write. It always returns true: every stage error stops
// the flow. ErrCancelled leaves the row untouched for redispatch.
func handleStageErr(ctx context.Context, deps stages.Deps, documentID, stageName string, entryStatus document.Status, err error) bool {
	switch {
	case errors.Is(err, stages.ErrCancelled):
		slog.Debug("document flow: cancelled", "document_id", documentID, "stage", stageName)
		return true
	case errors.Is(err, stages.ErrDomain):
		slog.Warn("document flow: domain error", "document_id", documentID, "stage", stageName, "error", err)
		if failErr := deps.Documents.MarkPermanentlyFailed(ctx, documentID, err.Error()); failErr != nil {
			slog.Error("document flow: mark permanently failed", "document_id", documentID, "error", failErr)
		}
		return true
	case errors.Is(err, stages.ErrTransient), errors.Is(err, stages.ErrSchema):
		slog.Warn("document flow: retryable error", "document_id", documentID, "stage", stageName, "error", err)
		if retryErr := deps.Documents.RetryOrFail(ctx, documentID, entryStatus, err.Error()); retryErr != nil {
			slog.Error("document flow: retry-or-fail", "document_id", documentID, "error", retryErr)
		}
		return true
	default:
		slog.Error("document flow: unclassified stage error, treating as transient", "document_id", documentID, "stage", stageName, "error", err)
		if retryErr := deps.Documents.RetryOrFail(ctx, documentID, entryStatus, fmt.Sprintf("unclassified error: %v", err)); retryErr != nil {
			slog.Error("document flow: retry-or-fail", "document_id", documentID, "error", retryErr)
		}
		return true
	}
}
