package services

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/docfiler/ent/prompt"
	testdb "github.com/codeready-toolchain/docfiler/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromptService(t *testing.T) *PromptService {
	t.Helper()
	client := testdb.NewTestClient(t)
	return NewPromptService(client.Client)
}

func TestPromptService_CreateVersionAndGetActive(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	p, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeClassifier,
		Text:       "classify v1",
		CanEvolve:  true,
		Activate:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	active, err := svc.GetActive(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)
}

func TestPromptService_CreateVersion_MonotonicPerScope(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()
	docType := "bill"

	first, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType:   prompt.PromptTypeSummarizer,
		DocumentType: &docType,
		Text:         "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType:   prompt.PromptTypeSummarizer,
		DocumentType: &docType,
		Text:         "v2",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	// A different scope (nil document_type) starts its own sequence.
	generic, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeSummarizer,
		Text:       "generic v1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, generic.Version)
}

func TestPromptService_GetActiveWithFallback(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	generic, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeSummarizer,
		Text:       "generic summarizer",
		Activate:   true,
	})
	require.NoError(t, err)

	// No scoped prompt exists for "bill" yet: falls back to the generic one.
	active, err := svc.GetActiveWithFallback(ctx, prompt.PromptTypeSummarizer, "bill")
	require.NoError(t, err)
	assert.Equal(t, generic.ID, active.ID)

	docType := "bill"
	scoped, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType:   prompt.PromptTypeSummarizer,
		DocumentType: &docType,
		Text:         "bill summarizer",
		Activate:     true,
	})
	require.NoError(t, err)

	active, err = svc.GetActiveWithFallback(ctx, prompt.PromptTypeSummarizer, "bill")
	require.NoError(t, err)
	assert.Equal(t, scoped.ID, active.ID)
}

func TestPromptService_Deactivate(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeClassifier,
		Text:       "v1",
		Activate:   true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, prompt.PromptTypeClassifier, nil))

	_, err = svc.GetActive(ctx, prompt.PromptTypeClassifier, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deactivating an already-inactive (or nonexistent) scope is a no-op,
	// not an error.
	require.NoError(t, svc.Deactivate(ctx, prompt.PromptTypeClassifier, nil))
}

func TestPromptService_ListVersions(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateVersion(ctx, CreateVersionInput{
			PromptType: prompt.PromptTypeClassifier,
			Text:       "v",
		})
		require.NoError(t, err)
	}

	versions, err := svc.ListVersions(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	// Newest first.
	assert.Equal(t, 3, versions[0].Version)
	assert.Equal(t, 1, versions[2].Version)
}

// TestPromptService_Evolve_ExactlyOneActivePerScope drives one Evolve call
// and asserts spec §8 invariant 2 holds afterwards: exactly one
// is_active=true row in the (prompt_type, document_type) scope.
func TestPromptService_Evolve_ExactlyOneActivePerScope(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	score := 0.80
	active, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeClassifier,
		Text:       "v1",
		Score:      &score,
		CanEvolve:  true,
		Activate:   true,
	})
	require.NoError(t, err)

	result, err := svc.Evolve(ctx, active, 0.88, "v2 suggested text")
	require.NoError(t, err)
	assert.True(t, result.Evolved)
	assert.Equal(t, 2, result.Active.Version)

	versions, err := svc.ListVersions(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	activeCount := 0
	for _, v := range versions {
		if v.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	got, err := svc.GetActive(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	assert.Equal(t, "v2 suggested text", got.PromptText)
}

func TestPromptService_Evolve_BelowMargin_NoNewVersion(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	score := 0.80
	active, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeClassifier,
		Text:       "v1",
		Score:      &score,
		CanEvolve:  true,
		Activate:   true,
	})
	require.NoError(t, err)

	// 0.84 - 0.80 = 0.04, which does not clear the 0.05 margin.
	result, err := svc.Evolve(ctx, active, 0.84, "not good enough")
	require.NoError(t, err)
	assert.False(t, result.Evolved)

	versions, err := svc.ListVersions(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestPromptService_Evolve_ScoreCeilingBlocks(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	score := 0.80
	ceiling := 0.85
	active, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType:   prompt.PromptTypeClassifier,
		Text:         "v1",
		Score:        &score,
		CanEvolve:    true,
		ScoreCeiling: &ceiling,
		Activate:     true,
	})
	require.NoError(t, err)

	result, err := svc.Evolve(ctx, active, 0.90, "over ceiling")
	require.NoError(t, err)
	assert.False(t, result.Evolved)

	got, err := svc.GetActive(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
}

func TestPromptService_Evolve_CanEvolveFalse_NeverReplaces(t *testing.T) {
	svc := newPromptService(t)
	ctx := context.Background()

	score := 0.50
	active, err := svc.CreateVersion(ctx, CreateVersionInput{
		PromptType: prompt.PromptTypeClassifier,
		Text:       "static prompt",
		Score:      &score,
		CanEvolve:  false,
		Activate:   true,
	})
	require.NoError(t, err)

	result, err := svc.Evolve(ctx, active, 0.99, "would be great but can't evolve")
	require.NoError(t, err)
	assert.False(t, result.Evolved)

	versions, err := svc.ListVersions(ctx, prompt.PromptTypeClassifier, nil)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
