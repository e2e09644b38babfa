package flow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codeready-toolchain/docfiler/pkg/stages"
)

// RunFile drives fileID through File Flow's single stage, File-Summarize
// (spec §4.F). As with RunDocument, a stage failure is translated into a
// FileService write rather than propagated; RunFile always returns nil.
func RunFile(ctx context.Context, deps stages.Deps, fileID string) error {
	if err := ctx.Err(); err != nil {
		return nil
	}

	f, err := deps.Files.GetByID(ctx, fileID)
	if err != nil {
		slog.Error("file flow: load file", "file_id", fileID, "error", err)
		return nil
	}
	entryStatus := f.Status

	err = stages.FileSummarize(ctx, deps, fileID)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, stages.ErrCancelled):
		slog.Debug("file flow: cancelled", "file_id", fileID)
	case errors.Is(err, stages.ErrDomain):
		slog.Warn("file flow: domain error", "file_id", fileID, "error", err)
		if failErr := deps.Files.MarkPermanentlyFailed(ctx, fileID, err.Error()); failErr != nil {
			slog.Error("file flow: mark permanently failed", "file_id", fileID, "error", failErr)
		}
	case errors.Is(err, stages.ErrTransient), errors.Is(err, stages.ErrSchema):
		slog.Warn("file flow: retryable error", "file_id", fileID, "error", err)
		if retryErr := deps.Files.RetryOrFail(ctx, fileID, entryStatus, err.Error()); retryErr != nil {
			slog.Error("file flow: retry-or-fail", "file_id", fileID, "error", retryErr)
		}
	default:
		slog.Error("file flow: unclassified stage error, treating as transient", "file_id", fileID, "error", err)
		if retryErr := deps.Files.RetryOrFail(ctx, fileID, entryStatus, err.Error()); retryErr != nil {
			slog.Error("file flow: retry-or-fail", "file_id", fileID, "error", retryErr)
		}
	}

	return nil
}
