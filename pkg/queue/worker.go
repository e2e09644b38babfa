package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/file"
	"github.com/codeready-toolchain/docfiler/pkg/flow"
)

// restingDocumentStatuses are the Document Flow statuses a document may be
// launched from: either brand new (pending) or parked between two stages
// waiting for its next launch (spec §4.G.1.a). A status not in this list is
// either terminal or mid-stage (owned by an in-flight attempt, or a
// stuck-row sweep candidate).
var restingDocumentStatuses = []document.Status{
	document.StatusPending,
	document.StatusOcrCompleted,
	document.StatusClassified,
	document.StatusScoredClassification,
	document.StatusSummarized,
	document.StatusScoredSummary,
}

// restingFileStatuses are the File Flow statuses a file may be launched
// from (spec §4.G.1.b).
var restingFileStatuses = []file.Status{
	file.StatusPending,
	file.StatusOutdated,
}

// launchDocuments queries up to DocumentBatchLimit launchable documents
// across every resting status and starts a Document Flow run for each.
// RunDocument resumes from wherever the document's status actually is, so
// one call drives it through every subsequent stage it's currently eligible
// for — the orchestrator never needs to re-poll the same document mid-flow.
func (o *Orchestrator) launchDocuments(ctx context.Context, drain *sync.WaitGroup) {
	remaining := o.config.DocumentBatchLimit
	for _, status := range restingDocumentStatuses {
		if remaining <= 0 {
			return
		}
		docs, err := o.deps.Documents.ListByStatus(ctx, status, remaining)
		if err != nil {
			slog.Error("orchestrator: list documents by status", "status", status, "error", err)
			continue
		}
		for _, d := range docs {
			documentID := d.ID
			o.launch(ctx, "document", documentID, drain, func(ctx context.Context) error {
				return flow.RunDocument(ctx, o.deps, documentID)
			})
		}
		remaining -= len(docs)
	}
}

// launchFiles mirrors launchDocuments for the File Flow's single stage.
func (o *Orchestrator) launchFiles(ctx context.Context, drain *sync.WaitGroup) {
	remaining := o.config.FileBatchLimit
	for _, status := range restingFileStatuses {
		if remaining <= 0 {
			return
		}
		files, err := o.deps.Files.ListByStatus(ctx, []file.Status{status}, remaining)
		if err != nil {
			slog.Error("orchestrator: list files by status", "status", status, "error", err)
			continue
		}
		for _, f := range files {
			fileID := f.ID
			o.launch(ctx, "file", fileID, drain, func(ctx context.Context) error {
				return flow.RunFile(ctx, o.deps, fileID)
			})
		}
		remaining -= len(files)
	}
}

// launch runs fn in its own goroutine, tracked in activeFlows for Health()
// and in o.wg so Stop() waits for it. If drain is non-nil (RunOnce mode) the
// goroutine is also added there so the caller can block until it finishes.
func (o *Orchestrator) launch(ctx context.Context, kind, rowID string, drain *sync.WaitGroup, fn func(ctx context.Context) error) {
	key := fmt.Sprintf("%s:%s", kind, rowID)

	o.mu.Lock()
	if _, inFlight := o.activeFlows[key]; inFlight {
		o.mu.Unlock()
		return
	}
	o.activeFlows[key] = WorkerHealth{Kind: kind, RowID: rowID, StartedAt: time.Now()}
	o.mu.Unlock()

	o.wg.Add(1)
	if drain != nil {
		drain.Add(1)
	}

	go func() {
		defer o.wg.Done()
		if drain != nil {
			defer drain.Done()
		}
		defer func() {
			o.mu.Lock()
			delete(o.activeFlows, key)
			o.mu.Unlock()
		}()

		if err := fn(ctx); err != nil {
			// Flow functions are designed to always return nil (a stage
			// failure is absorbed into a State Store write); a non-nil
			// error here means a bug upstream, not a document/file failure.
			slog.Error("orchestrator: flow returned unexpected error", "kind", kind, "row_id", rowID, "error", err)
		}
	}()
}
