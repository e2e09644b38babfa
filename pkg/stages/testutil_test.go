package stages

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/document"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/llmclient"
	"github.com/codeready-toolchain/docfiler/pkg/ocr"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
	testdb "github.com/codeready-toolchain/docfiler/test/database"
)

// stageFixture bundles a full Deps wired to a real Postgres test database
// plus direct handles to the services and stub collaborators, so a test can
// both drive a stage function and inspect/seed rows beneath it.
type stageFixture struct {
	client *ent.Client
	deps   Deps

	documents *services.DocumentService
	files     *services.FileService
	tags      *services.TagService
	series    *services.SeriesService
	prompts   *services.PromptService

	llm *llmclient.StubClient
	ocr *ocr.StubClient
}

// newStageFixture builds a stageFixture against a fresh test database.
// llmResponses maps an active prompt's exact PromptText to the raw JSON the
// stub LLM should return when that prompt is used.
func newStageFixture(t *testing.T, llmResponses map[string]string) *stageFixture {
	t.Helper()
	client := testdb.NewTestClient(t)

	g, err := gate.New(map[string]int{gate.OCR: 3, gate.LLM: 5, gate.FileGen: 2})
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}

	llm := llmclient.NewStubClient(llmResponses)
	ocrClient := ocr.NewStubClient("stub extracted text", 0.9)

	fx := &stageFixture{
		client:    client.Client,
		documents: services.NewDocumentService(client.Client),
		files:     services.NewFileService(client.Client),
		tags:      services.NewTagService(client.Client),
		series:    services.NewSeriesService(client.Client),
		prompts:   services.NewPromptService(client.Client),
		llm:       llm,
		ocr:       ocrClient,
	}

	fx.deps = NewDeps(
		fx.documents,
		fx.files,
		fx.tags,
		fx.series,
		fx.prompts,
		llm,
		ocrClient,
		g,
		typelock.New(client.DB(), 10*time.Millisecond, time.Second),
		DefaultPromptConfig(),
	)
	return fx
}

// seedActivePrompt creates and activates a prompt version in scope
// (promptType, documentType), returning it. Its PromptText is a
// deterministic marker the caller registers a stub LLM response under.
func (fx *stageFixture) seedActivePrompt(t *testing.T, promptType prompt.PromptType, documentType *string, text string) *ent.Prompt {
	t.Helper()
	p, err := fx.prompts.CreateVersion(context.Background(), services.CreateVersionInput{
		PromptType:   promptType,
		DocumentType: documentType,
		Text:         text,
		CanEvolve:    true,
		Activate:     true,
	})
	if err != nil {
		t.Fatalf("seed active prompt %s: %v", promptType, err)
	}
	return p
}

func strPtr(s string) *string { return &s }

// setExtractedText puts a freshly created document straight into
// ocr_completed with extractedText set, skipping the OCR stage itself for
// tests that only care about what happens after it.
func setExtractedText(ctx context.Context, fx *stageFixture, documentID, extractedText string) error {
	_, err := fx.documents.CompareAndSet(ctx, documentID, document.StatusPending, document.StatusOcrCompleted,
		func(u *ent.DocumentUpdate) {
			u.SetExtractedText(extractedText)
		})
	return err
}
