package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/documenttag"
	"github.com/codeready-toolchain/docfiler/ent/tag"
	"github.com/codeready-toolchain/docfiler/pkg/tagnorm"
	"github.com/google/uuid"
)

// TagService owns tag normalization and the document<->tag membership,
// keeping system-generated and LLM-generated tags coexisting on one row
// per normalized string (spec §3 invariant 6).
type TagService struct {
	client *ent.Client
}

// NewTagService creates a new TagService.
func NewTagService(client *ent.Client) *TagService {
	return &TagService{client: client}
}

// findOrCreateTag returns the Tag row for the normalized form of raw,
// creating it if this is the first time the normalized string is seen.
func (s *TagService) findOrCreateTag(ctx context.Context, raw string) (*ent.Tag, error) {
	normalized := tagnorm.Normalize(raw)
	if normalized == "" {
		return nil, NewValidationError("tag", "normalizes to empty string")
	}

	existing, err := s.client.Tag.Query().
		Where(tag.TagNormalizedEQ(normalized)).
		Only(ctx)
	switch {
	case err == nil:
		return existing, nil
	case ent.IsNotFound(err):
		created, createErr := s.client.Tag.Create().
			SetID(uuid.New().String()).
			SetTagNormalized(normalized).
			Save(ctx)
		if createErr != nil {
			// Another goroutine may have won the race on the unique index;
			// re-read rather than fail the caller.
			if ent.IsConstraintError(createErr) {
				winner, getErr := s.client.Tag.Query().Where(tag.TagNormalizedEQ(normalized)).Only(ctx)
				if getErr != nil {
					return nil, fmt.Errorf("%w: tag %q: %v", ErrAlreadyExists, normalized, getErr)
				}
				return winner, nil
			}
			return nil, fmt.Errorf("create tag %q: %w", normalized, createErr)
		}
		return created, nil
	default:
		return nil, fmt.Errorf("query tag %q: %w", normalized, err)
	}
}

// Source identifies who produced a document<->tag membership.
type Source string

// Recognized tag sources.
const (
	SourceSystem Source = "system"
	SourceLLM    Source = "llm"
)

// AttachTag normalizes raw and links it to documentID with the given
// source, creating the Tag row if needed.
func (s *TagService) AttachTag(ctx context.Context, documentID, raw string, source Source) error {
	t, err := s.findOrCreateTag(ctx, raw)
	if err != nil {
		return err
	}

	exists, err := s.client.DocumentTag.Query().
		Where(documenttag.DocumentIDEQ(documentID), documenttag.TagIDEQ(t.ID)).
		Exist(ctx)
	if err != nil {
		return fmt.Errorf("check document_tag membership: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.DocumentTag.Create().
		SetDocumentID(documentID).
		SetTagID(t.ID).
		SetSource(documenttag.Source(source)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach tag %q to document %s: %w", raw, documentID, err)
	}
	return nil
}

// PopularTags returns up to limit normalized tag strings, ordered by how
// many documents carry them (most-attached first). Classify uses this as a
// hint list for the LLM (spec §4.B.2: "the top-N popular tags").
func (s *TagService) PopularTags(ctx context.Context, limit int) ([]string, error) {
	tags, err := s.client.Tag.Query().WithDocuments().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list popular tags: %w", err)
	}

	sort.Slice(tags, func(i, j int) bool {
		return len(tags[i].Edges.Documents) > len(tags[j].Edges.Documents)
	})

	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.TagNormalized
	}
	return out, nil
}

// TagsForDocument returns the normalized tag strings currently attached to
// documentID, used to build a file's tag signature and for series
// invalidation.
func (s *TagService) TagsForDocument(ctx context.Context, documentID string) ([]string, error) {
	tags, err := s.client.Tag.Query().
		Where(tag.HasDocumentsWith(document.IDEQ(documentID))).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags for document %s: %w", documentID, err)
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.TagNormalized
	}
	return out, nil
}
