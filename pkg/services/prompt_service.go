package services

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/google/uuid"
)

// scoreMargin is the minimum improvement a rescored prompt must clear over
// the active prompt's score before it is allowed to replace it (spec §4.H).
const scoreMargin = 0.05

// PromptService owns the Prompt Registry: versioned prompts per
// (prompt_type, document_type) scope, and the evolution rule that
// atomically replaces an active prompt when a rescore clears the margin.
type PromptService struct {
	client *ent.Client
}

// NewPromptService creates a new PromptService.
func NewPromptService(client *ent.Client) *PromptService {
	return &PromptService{client: client}
}

// GetActive returns the active prompt for (promptType, documentType). A nil
// documentType queries the scope-less (applies-to-all-types) row.
func (s *PromptService) GetActive(ctx context.Context, promptType prompt.PromptType, documentType *string) (*ent.Prompt, error) {
	q := s.client.Prompt.Query().Where(
		prompt.PromptTypeEQ(promptType),
		prompt.IsActiveEQ(true),
	)
	if documentType == nil {
		q = q.Where(prompt.DocumentTypeIsNil())
	} else {
		q = q.Where(prompt.DocumentTypeEQ(*documentType))
	}

	p, err := q.Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active prompt %s/%v: %w", promptType, documentType, err)
	}
	return p, nil
}

// GetActiveWithFallback tries the document-type-scoped active prompt first,
// falling back to the generic (nil document_type) prompt for promptType if
// no scoped row exists. Used by Summarize (spec §4.B.4): "falling back to
// the generic summarizer".
func (s *PromptService) GetActiveWithFallback(ctx context.Context, promptType prompt.PromptType, documentType string) (*ent.Prompt, error) {
	p, err := s.GetActive(ctx, promptType, &documentType)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.GetActive(ctx, promptType, nil)
}

// nextVersion returns the next monotonic version number for the scope.
func (s *PromptService) nextVersion(ctx context.Context, promptType prompt.PromptType, documentType *string) (int, error) {
	q := s.client.Prompt.Query().Where(prompt.PromptTypeEQ(promptType))
	if documentType == nil {
		q = q.Where(prompt.DocumentTypeIsNil())
	} else {
		q = q.Where(prompt.DocumentTypeEQ(*documentType))
	}

	latest, err := q.Order(ent.Desc(prompt.FieldVersion)).First(ctx)
	switch {
	case err == nil:
		return latest.Version + 1, nil
	case ent.IsNotFound(err):
		return 1, nil
	default:
		return 0, fmt.Errorf("resolve next prompt version: %w", err)
	}
}

// CreateVersionInput groups the fields a newly authored prompt version needs.
type CreateVersionInput struct {
	PromptType           prompt.PromptType
	DocumentType         *string
	Text                 string
	Score                *float64
	CanEvolve            bool
	ScoreCeiling         *float64
	RegeneratesOnUpdate  bool
	Activate             bool
}

// CreateVersion inserts a new prompt version in the (prompt_type,
// document_type) scope, allocating the next monotonic version number.
// Prompts are append-only (spec §3 Lifecycles): this never updates an
// existing row.
func (s *PromptService) CreateVersion(ctx context.Context, in CreateVersionInput) (*ent.Prompt, error) {
	if in.Text == "" {
		return nil, NewValidationError("prompt_text", "required")
	}

	version, err := s.nextVersion(ctx, in.PromptType, in.DocumentType)
	if err != nil {
		return nil, err
	}

	builder := s.client.Prompt.Create().
		SetID(uuid.New().String()).
		SetPromptType(in.PromptType).
		SetVersion(version).
		SetPromptText(in.Text).
		SetCanEvolve(in.CanEvolve).
		SetRegeneratesOnUpdate(in.RegeneratesOnUpdate).
		SetIsActive(in.Activate)
	if in.DocumentType != nil {
		builder.SetDocumentType(*in.DocumentType)
	}
	if in.Score != nil {
		builder.SetPerformanceScore(*in.Score)
	}
	if in.ScoreCeiling != nil {
		builder.SetScoreCeiling(*in.ScoreCeiling)
	}

	p, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create prompt version: %w", err)
	}
	return p, nil
}

// Deactivate flips is_active to false for the given scope's active row, if
// one exists. Deactivation is a flag flip, never a delete (spec §3
// Lifecycles).
func (s *PromptService) Deactivate(ctx context.Context, promptType prompt.PromptType, documentType *string) error {
	active, err := s.GetActive(ctx, promptType, documentType)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if err := s.client.Prompt.UpdateOneID(active.ID).SetIsActive(false).Exec(ctx); err != nil {
		return fmt.Errorf("deactivate prompt %s: %w", active.ID, err)
	}
	return nil
}

// ListVersions returns every version ever created in a (prompt_type,
// document_type) scope, newest first.
func (s *PromptService) ListVersions(ctx context.Context, promptType prompt.PromptType, documentType *string) ([]*ent.Prompt, error) {
	q := s.client.Prompt.Query().Where(prompt.PromptTypeEQ(promptType))
	if documentType == nil {
		q = q.Where(prompt.DocumentTypeIsNil())
	} else {
		q = q.Where(prompt.DocumentTypeEQ(*documentType))
	}
	versions, err := q.Order(ent.Desc(prompt.FieldVersion)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prompt versions %s/%v: %w", promptType, documentType, err)
	}
	return versions, nil
}

// EvolutionResult reports what the evolution rule decided.
type EvolutionResult struct {
	Evolved             bool
	Active              *ent.Prompt // the prompt now active in the scope (new or unchanged)
	RegeneratesOnUpdate bool        // true iff the replaced prompt requires cascade regeneration
}

// Evolve applies the single evolution rule (spec §4.H) against active:
//
//	if newScore > (active.performance_score ?? 0) + 0.05
//	   and active.can_evolve
//	   and (active.score_ceiling is null or newScore < active.score_ceiling):
//	     deactivate(scope); insert new version(text=suggestedText, score=newScore,
//	       version=active.version+1, is_active=true)
//
// The deactivate-then-insert pair runs inside one transaction so no reader
// ever observes two active rows or zero active rows for the scope. Score-*
// stages call this directly; the caller is responsible for invoking the
// cascade (regenerating dependent files) when RegeneratesOnUpdate is true.
func (s *PromptService) Evolve(ctx context.Context, active *ent.Prompt, newScore float64, suggestedText string) (*EvolutionResult, error) {
	baseline := 0.0
	if active.PerformanceScore != nil {
		baseline = *active.PerformanceScore
	}

	qualifies := newScore > baseline+scoreMargin &&
		active.CanEvolve &&
		(active.ScoreCeiling == nil || newScore < *active.ScoreCeiling)

	if !qualifies {
		return &EvolutionResult{Evolved: false, Active: active}, nil
	}

	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin prompt evolution transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Prompt.UpdateOneID(active.ID).SetIsActive(false).Exec(ctx); err != nil {
		return nil, fmt.Errorf("deactivate prompt %s: %w", active.ID, err)
	}

	builder := tx.Prompt.Create().
		SetID(uuid.New().String()).
		SetPromptType(active.PromptType).
		SetVersion(active.Version + 1).
		SetPromptText(suggestedText).
		SetPerformanceScore(newScore).
		SetCanEvolve(active.CanEvolve).
		SetRegeneratesOnUpdate(active.RegeneratesOnUpdate).
		SetIsActive(true)
	if active.DocumentType != nil {
		builder.SetDocumentType(*active.DocumentType)
	}
	if active.ScoreCeiling != nil {
		builder.SetScoreCeiling(*active.ScoreCeiling)
	}

	newPrompt, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert evolved prompt version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit prompt evolution: %w", err)
	}

	return &EvolutionResult{
		Evolved:             true,
		Active:              newPrompt,
		RegeneratesOnUpdate: active.RegeneratesOnUpdate,
	}, nil
}
