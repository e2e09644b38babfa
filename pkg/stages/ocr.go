package stages

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
)

// OCR requires status=pending, extracts the document's text through the
// OCR provider gated by the `ocr` concurrency name, and advances to
// ocr_completed (spec §4.B.1).
func OCR(ctx context.Context, deps Deps, documentID string) error {
	doc, err := deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return Domain(fmt.Errorf("load document %s: %w", documentID, err))
	}

	advanced, err := deps.Documents.BeginStage(ctx, documentID, document.StatusPending, document.StatusOcrInProgress)
	if err != nil {
		return Transient(fmt.Errorf("begin ocr stage: %w", err))
	}
	if !advanced {
		// Another worker already claimed this row; not an error for us.
		return nil
	}

	var extractedText string
	err = deps.Gate.Do(ctx, gate.OCR, func(ctx context.Context) error {
		res, extractErr := deps.OCR.Extract(ctx, doc.FolderPath)
		if extractErr != nil {
			return extractErr
		}
		extractedText = res.FullText
		return nil
	})
	if err != nil {
		return classifyExternalErr(ctx, err)
	}

	_, err = deps.Documents.CompareAndSet(ctx, documentID, document.StatusOcrInProgress, document.StatusOcrCompleted,
		func(u *ent.DocumentUpdate) {
			u.SetExtractedText(extractedText)
		})
	if err != nil {
		return Transient(fmt.Errorf("advance to ocr_completed: %w", err))
	}
	return nil
}
