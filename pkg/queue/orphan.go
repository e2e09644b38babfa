package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/file"
)

// sweepState tracks stuck-row sweep metrics (thread-safe).
type sweepState struct {
	mu            sync.Mutex
	lastSweepAt   time.Time
	rowsRecovered int
}

// progressingDocumentEntryStatus maps a mid-stage Document status to the
// resting status the stuck-row sweep resets it to for redispatch — the same
// entry status the owning documentPipeline stage would have required.
var progressingDocumentEntryStatus = map[document.Status]document.Status{
	document.StatusOcrInProgress:         document.StatusPending,
	document.StatusClassifying:           document.StatusOcrCompleted,
	document.StatusScoringClassification: document.StatusClassified,
	document.StatusSummarizing:           document.StatusScoredClassification,
	document.StatusScoringSummary:        document.StatusSummarized,
	document.StatusFiling:                document.StatusScoredSummary,
}

// progressingFileEntryStatus mirrors progressingDocumentEntryStatus for File
// Flow's single stage, which has two possible entry points (generate from
// pending, regenerate from outdated).
var progressingFileEntryStatus = map[file.Status]file.Status{
	file.StatusGenerating:   file.StatusPending,
	file.StatusRegenerating: file.StatusOutdated,
}

// runSweepLoop periodically scans for documents/files stuck mid-stage with
// a stale updated_at and recovers them (spec §4.G.1.c).
func (o *Orchestrator) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepStuck(ctx)
		}
	}
}

// sweepStuck recovers stuck documents and files in one pass.
func (o *Orchestrator) sweepStuck(ctx context.Context) {
	threshold := time.Now().Add(-o.config.StuckThreshold)
	recovered := 0

	docStatuses := make([]document.Status, 0, len(progressingDocumentEntryStatus))
	for s := range progressingDocumentEntryStatus {
		docStatuses = append(docStatuses, s)
	}
	stuckDocs, err := o.deps.Documents.ListStuck(ctx, docStatuses, threshold, o.config.DocumentBatchLimit)
	if err != nil {
		slog.Error("orchestrator: list stuck documents", "error", err)
	}
	for _, d := range stuckDocs {
		entryStatus, ok := progressingDocumentEntryStatus[d.Status]
		if !ok {
			continue
		}
		lastErr := fmt.Sprintf("stuck: no progress in status %s since %s", d.Status, d.UpdatedAt.Format(time.RFC3339))
		if err := o.deps.Documents.RetryOrFail(ctx, d.ID, entryStatus, lastErr); err != nil {
			slog.Error("orchestrator: recover stuck document", "document_id", d.ID, "error", err)
			continue
		}
		slog.Warn("orchestrator: recovered stuck document", "document_id", d.ID, "status", d.Status)
		recovered++
	}

	fileStatuses := make([]file.Status, 0, len(progressingFileEntryStatus))
	for s := range progressingFileEntryStatus {
		fileStatuses = append(fileStatuses, s)
	}
	stuckFiles, err := o.deps.Files.ListStuck(ctx, fileStatuses, threshold, o.config.FileBatchLimit)
	if err != nil {
		slog.Error("orchestrator: list stuck files", "error", err)
	}
	for _, f := range stuckFiles {
		entryStatus, ok := progressingFileEntryStatus[f.Status]
		if !ok {
			continue
		}
		lastErr := fmt.Sprintf("stuck: no progress in status %s since %s", f.Status, f.UpdatedAt.Format(time.RFC3339))
		if err := o.deps.Files.RetryOrFail(ctx, f.ID, entryStatus, lastErr); err != nil {
			slog.Error("orchestrator: recover stuck file", "file_id", f.ID, "error", err)
			continue
		}
		slog.Warn("orchestrator: recovered stuck file", "file_id", f.ID, "status", f.Status)
		recovered++
	}

	o.sweep.mu.Lock()
	o.sweep.lastSweepAt = time.Now()
	o.sweep.rowsRecovered += recovered
	o.sweep.mu.Unlock()
}
