package services

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/google/uuid"
)

// DocumentService is the State Store's narrow contract over the Document
// table: reads by id/status, and compare-and-set status writes so two
// workers can never both advance the same row.
type DocumentService struct {
	client *ent.Client
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(client *ent.Client) *DocumentService {
	return &DocumentService{client: client}
}

// CreateDocument inserts a new document row in status=pending. Called by
// the inbox scanner external collaborator (spec §6); exposed here so tests
// and process-one can seed rows directly.
func (s *DocumentService) CreateDocument(ctx context.Context, folderPath string, maxRetries int) (*ent.Document, error) {
	if folderPath == "" {
		return nil, NewValidationError("folder_path", "required")
	}

	doc, err := s.client.Document.Create().
		SetID(uuid.New().String()).
		SetFolderPath(folderPath).
		SetStatus(document.StatusPending).
		SetMaxRetries(maxRetries).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// GetByID retrieves a document by id.
func (s *DocumentService) GetByID(ctx context.Context, id string) (*ent.Document, error) {
	doc, err := s.client.Document.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// ListByStatus returns up to limit documents in status, in the order the
// store returns them — callers must not depend on that ordering (spec §5).
func (s *DocumentService) ListByStatus(ctx context.Context, status document.Status, limit int) ([]*ent.Document, error) {
	docs, err := s.client.Document.Query().
		Where(document.StatusEQ(status)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents by status %s: %w", status, err)
	}
	return docs, nil
}

// ListStuck returns progressing-status documents whose updated_at is older
// than olderThan, for the orchestrator's stuck-row sweep (spec §4.G.1.c).
func (s *DocumentService) ListStuck(ctx context.Context, statuses []document.Status, olderThan time.Time, limit int) ([]*ent.Document, error) {
	docs, err := s.client.Document.Query().
		Where(
			document.StatusIn(statuses...),
			document.UpdatedAtLT(olderThan),
		).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stuck documents: %w", err)
	}
	return docs, nil
}

// CompareAndSet transitions a document from `from` to `to` iff its current
// status is still `from`, applying extra mutations in the same statement.
// It returns whether the transition happened — false means another worker
// already moved (or is moving) the row, and the caller must not proceed.
func (s *DocumentService) CompareAndSet(ctx context.Context, id string, from, to document.Status, mutate func(*ent.DocumentUpdate)) (bool, error) {
	upd := s.client.Document.Update().
		Where(document.IDEQ(id), document.StatusEQ(from)).
		SetStatus(to)
	if mutate != nil {
		mutate(upd)
	}

	n, err := upd.Save(ctx)
	if err != nil {
		return false, fmt.Errorf("compare-and-set document %s %s->%s: %w", id, from, to, err)
	}
	return n == 1, nil
}

// BeginStage stamps processing_started_at and transitions to `to` from
// `from`, marking the row as the current owner's in-flight attempt for the
// stuck-row sweep.
func (s *DocumentService) BeginStage(ctx context.Context, id string, from, to document.Status) (bool, error) {
	return s.CompareAndSet(ctx, id, from, to, func(u *ent.DocumentUpdate) {
		u.SetProcessingStartedAt(time.Now())
	})
}

// RetryOrFail applies the error-handling design's transient-failure path:
// increments retry_count and resets status to the stage's entry status,
// unless retry_count has reached max_retries, in which case the row is
// marked permanently_failed with lastErr recorded.
func (s *DocumentService) RetryOrFail(ctx context.Context, id string, entryStatus document.Status, lastErr string) error {
	doc, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	retryCount := doc.RetryCount + 1
	upd := s.client.Document.UpdateOneID(id).
		SetRetryCount(retryCount).
		SetLastError(lastErr).
		ClearProcessingStartedAt()

	if retryCount >= doc.MaxRetries {
		upd.SetStatus(document.StatusPermanentlyFailed)
	} else {
		upd.SetStatus(entryStatus)
	}

	if _, err := upd.Save(ctx); err != nil {
		return fmt.Errorf("retry-or-fail document %s: %w", id, err)
	}
	return nil
}

// MarkPermanentlyFailed marks a document as permanently failed immediately,
// for domain errors that have no retry path (spec §7 error kind 3).
func (s *DocumentService) MarkPermanentlyFailed(ctx context.Context, id, lastErr string) error {
	err := s.client.Document.UpdateOneID(id).
		SetStatus(document.StatusPermanentlyFailed).
		SetLastError(lastErr).
		ClearProcessingStartedAt().
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("mark document %s permanently failed: %w", id, err)
	}
	return nil
}

// CountByDocumentType counts documents already classified with docType,
// used by Score-Classification's "fewer than 5 documents of this type,
// skip scoring" rule.
func (s *DocumentService) CountByDocumentType(ctx context.Context, docType string) (int, error) {
	n, err := s.client.Document.Query().
		Where(document.DocumentTypeEQ(docType)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents of type %s: %w", docType, err)
	}
	return n, nil
}
