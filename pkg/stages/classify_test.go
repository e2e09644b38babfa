package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
)

const classifierPromptText = "classify this document against known types"

func TestClassify_HappyPath_WritesClassificationAndTags(t *testing.T) {
	resp := `{"document_type":"utility-bill","confidence":0.92,"reasoning":"looks like PG&E","tags":["electricity","household"]}`
	fx := newStageFixture(t, map[string]string{classifierPromptText: resp})
	ctx := context.Background()

	fx.seedActivePrompt(t, prompt.PromptTypeClassifier, nil, classifierPromptText)

	doc, err := fx.documents.CreateDocument(ctx, "/inbox/bill1", 3)
	require.NoError(t, err)
	require.NoError(t, setExtractedText(ctx, fx, doc.ID, "PG&E bill for March"))

	require.NoError(t, Classify(ctx, fx.deps, doc.ID))

	reloaded, err := fx.documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusClassified, reloaded.Status)
	require.NotNil(t, reloaded.DocumentType)
	assert.Equal(t, "utility-bill", *reloaded.DocumentType)
	assert.InDelta(t, 0.92, *reloaded.ClassificationConfidence, 0.0001)

	tags, err := fx.tags.TagsForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, tags, "utility-bill")
	assert.Contains(t, tags, "electricity")
	assert.Contains(t, tags, "household")
}

func TestClassify_NoActivePrompt_ReturnsDomainError(t *testing.T) {
	fx := newStageFixture(t, nil)
	ctx := context.Background()

	doc, err := fx.documents.CreateDocument(ctx, "/inbox/bill1", 3)
	require.NoError(t, err)
	require.NoError(t, setExtractedText(ctx, fx, doc.ID, "some text"))

	err = Classify(ctx, fx.deps, doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDomain)
}
