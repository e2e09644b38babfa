package services

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/file"
	"github.com/codeready-toolchain/docfiler/ent/filedocument"
	"github.com/google/uuid"
)

// FileService owns the File aggregate: find-or-create by tag signature,
// membership bookkeeping in the file_documents cache, and the same
// compare-and-set status-transition contract DocumentService gives
// documents, so the File Flow never double-advances a row.
type FileService struct {
	client *ent.Client
}

// NewFileService creates a new FileService.
func NewFileService(client *ent.Client) *FileService {
	return &FileService{client: client}
}

// FindOrCreateBySignature looks up an llm-sourced file by its exact tag
// signature, creating one in status=pending if none exists (spec §4.B.6).
// User files are never created this way — they're a distinct source and
// out of scope for the File stage.
func (s *FileService) FindOrCreateBySignature(ctx context.Context, tags []string, tagSignature string) (*ent.File, bool, error) {
	existing, err := s.client.File.Query().
		Where(file.SourceEQ(file.SourceLlm), file.TagSignatureEQ(tagSignature)).
		Only(ctx)
	switch {
	case err == nil:
		return existing, false, nil
	case !ent.IsNotFound(err):
		return nil, false, fmt.Errorf("query file by signature %s: %w", tagSignature, err)
	}

	created, err := s.client.File.Create().
		SetID(uuid.New().String()).
		SetTags(tags).
		SetTagSignature(tagSignature).
		SetSource(file.SourceLlm).
		SetStatus(file.StatusPending).
		Save(ctx)
	if err != nil {
		// Another worker raced us to the unique (source, tag_signature) index.
		if ent.IsConstraintError(err) {
			existing, getErr := s.client.File.Query().
				Where(file.SourceEQ(file.SourceLlm), file.TagSignatureEQ(tagSignature)).
				Only(ctx)
			if getErr == nil {
				return existing, false, nil
			}
			return nil, false, fmt.Errorf("%w: file signature %s: %v", ErrAlreadyExists, tagSignature, getErr)
		}
		return nil, false, fmt.Errorf("create file for signature %s: %w", tagSignature, err)
	}
	return created, true, nil
}

// GetByID retrieves a file by id.
func (s *FileService) GetByID(ctx context.Context, id string) (*ent.File, error) {
	f, err := s.client.File.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	return f, nil
}

// ListByStatus returns up to limit files in status, for the orchestrator's
// per-tick File Flow launch query (spec §4.G.1.b).
func (s *FileService) ListByStatus(ctx context.Context, statuses []file.Status, limit int) ([]*ent.File, error) {
	files, err := s.client.File.Query().
		Where(file.StatusIn(statuses...)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files by status: %w", err)
	}
	return files, nil
}

// ListStuck returns progressing-status files whose updated_at is older than
// olderThan, for the orchestrator's stuck-row sweep.
func (s *FileService) ListStuck(ctx context.Context, statuses []file.Status, olderThan time.Time, limit int) ([]*ent.File, error) {
	files, err := s.client.File.Query().
		Where(
			file.StatusIn(statuses...),
			file.UpdatedAtLT(olderThan),
		).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stuck files: %w", err)
	}
	return files, nil
}

// AddMember records a document as a member of a file in the file_documents
// cache. Idempotent: re-adding an existing pair is a no-op.
func (s *FileService) AddMember(ctx context.Context, fileID, documentID string) error {
	exists, err := s.client.FileDocument.Query().
		Where(filedocument.FileIDEQ(fileID), filedocument.DocumentIDEQ(documentID)).
		Exist(ctx)
	if err != nil {
		return fmt.Errorf("check file membership %s/%s: %w", fileID, documentID, err)
	}
	if exists {
		return nil
	}

	err = s.client.FileDocument.Create().
		SetFileID(fileID).
		SetDocumentID(documentID).
		Exec(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("add file member %s/%s: %w", fileID, documentID, err)
	}
	return nil
}

// RemoveMember drops a document from a file's membership cache, used by the
// tag-drift invalidation path when a document's tags no longer satisfy a
// file's signature.
func (s *FileService) RemoveMember(ctx context.Context, fileID, documentID string) error {
	_, err := s.client.FileDocument.Delete().
		Where(filedocument.FileIDEQ(fileID), filedocument.DocumentIDEQ(documentID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove file member %s/%s: %w", fileID, documentID, err)
	}
	return nil
}

// MembersOf returns every document currently cached as a member of fileID,
// ordered by created_at desc — the order File-Summarize reads them in
// (spec §4.E).
func (s *FileService) MembersOf(ctx context.Context, fileID string) ([]*ent.Document, error) {
	f, err := s.client.File.Get(ctx, fileID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}

	members, err := f.QueryDocuments().
		Order(ent.Desc(document.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members of file %s: %w", fileID, err)
	}
	return members, nil
}

// CompareAndSet transitions a file from `from` to `to` iff its current
// status is still `from`. Mirrors DocumentService.CompareAndSet.
func (s *FileService) CompareAndSet(ctx context.Context, id string, from, to file.Status, mutate func(*ent.FileUpdate)) (bool, error) {
	upd := s.client.File.Update().
		Where(file.IDEQ(id), file.StatusEQ(from)).
		SetStatus(to)
	if mutate != nil {
		mutate(upd)
	}

	n, err := upd.Save(ctx)
	if err != nil {
		return false, fmt.Errorf("compare-and-set file %s %s->%s: %w", id, from, to, err)
	}
	return n == 1, nil
}

// BeginStage stamps processing_started_at and transitions to `to` from
// `from`.
func (s *FileService) BeginStage(ctx context.Context, id string, from, to file.Status) (bool, error) {
	return s.CompareAndSet(ctx, id, from, to, func(u *ent.FileUpdate) {
		u.SetProcessingStartedAt(time.Now())
	})
}

// RetryOrFail mirrors DocumentService.RetryOrFail: resets to entryStatus for
// another attempt, or marks permanently_failed once max_retries is reached.
func (s *FileService) RetryOrFail(ctx context.Context, id string, entryStatus file.Status, lastErr string) error {
	f, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	retryCount := f.RetryCount + 1
	upd := s.client.File.UpdateOneID(id).
		SetRetryCount(retryCount).
		SetLastError(lastErr).
		ClearProcessingStartedAt()

	if retryCount >= f.MaxRetries {
		upd.SetStatus(file.StatusPermanentlyFailed)
	} else {
		upd.SetStatus(entryStatus)
	}

	if _, err := upd.Save(ctx); err != nil {
		return fmt.Errorf("retry-or-fail file %s: %w", id, err)
	}
	return nil
}

// MarkPermanentlyFailed marks a file as permanently failed immediately.
func (s *FileService) MarkPermanentlyFailed(ctx context.Context, id, lastErr string) error {
	err := s.client.File.UpdateOneID(id).
		SetStatus(file.StatusPermanentlyFailed).
		SetLastError(lastErr).
		ClearProcessingStartedAt().
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("mark file %s permanently failed: %w", id, err)
	}
	return nil
}

// MarkOutdatedByDocumentType flips every generated/regenerating file whose
// cached membership includes a document of docType to status=outdated. This
// is the regenerates_on_update cascade (spec §4.H): the evolution rule is
// conservative and invalidates all files scoped by the prompt's document
// type, per the recorded Open Question decision (b).
func (s *FileService) MarkOutdatedByDocumentType(ctx context.Context, docType string) (int, error) {
	ids, err := s.client.File.Query().
		Where(
			file.StatusIn(file.StatusGenerated, file.StatusRegenerating),
			file.HasDocumentsWith(document.DocumentTypeEQ(docType)),
		).
		IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("find files to invalidate for document type %s: %w", docType, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.client.File.Update().
		Where(file.IDIn(ids...)).
		SetStatus(file.StatusOutdated).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("mark files outdated for document type %s: %w", docType, err)
	}
	return n, nil
}

// InvalidateForTagDrift re-evaluates every file the document currently
// belongs to against its up-to-date tag set and flips any file whose
// signature is no longer a subset of those tags to outdated, removing the
// document from the file's membership cache (spec §4.I.2). This is called
// synchronously whenever a document's tag set changes, not polled.
func (s *FileService) InvalidateForTagDrift(ctx context.Context, documentID string, currentTags map[string]struct{}) (int, error) {
	files, err := s.client.File.Query().
		Where(
			file.SourceEQ(file.SourceLlm),
			file.HasDocumentsWith(document.IDEQ(documentID)),
		).
		All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list files for tag-drift check on document %s: %w", documentID, err)
	}

	flipped := 0
	for _, f := range files {
		satisfied := true
		for _, tag := range f.Tags {
			if _, ok := currentTags[tag]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			continue
		}

		if err := s.RemoveMember(ctx, f.ID, documentID); err != nil {
			return flipped, err
		}
		if f.Status == file.StatusGenerated || f.Status == file.StatusRegenerating {
			if err := s.client.File.UpdateOneID(f.ID).SetStatus(file.StatusOutdated).Exec(ctx); err != nil {
				return flipped, fmt.Errorf("mark file %s outdated on tag drift: %w", f.ID, err)
			}
			flipped++
		}
	}
	return flipped, nil
}
