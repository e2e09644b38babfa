package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/llmclient"
	"github.com/codeready-toolchain/docfiler/pkg/ocr"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/stages"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
	testdb "github.com/codeready-toolchain/docfiler/test/database"
)

// flowFixture is the pkg/flow analogue of pkg/stages' stageFixture: a full
// Deps wired to a real Postgres test database, plus the service handles a
// test needs to seed documents, prompts, and inspect the result.
type flowFixture struct {
	documents *services.DocumentService
	files     *services.FileService
	tags      *services.TagService
	prompts   *services.PromptService
	deps      stages.Deps
}

func newFlowFixture(t *testing.T, llmResponses map[string]string) *flowFixture {
	t.Helper()
	client := testdb.NewTestClient(t)

	g, err := gate.New(map[string]int{gate.OCR: 3, gate.LLM: 5, gate.FileGen: 2})
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}

	fx := &flowFixture{
		documents: services.NewDocumentService(client.Client),
		files:     services.NewFileService(client.Client),
		tags:      services.NewTagService(client.Client),
		prompts:   services.NewPromptService(client.Client),
	}

	fx.deps = stages.NewDeps(
		fx.documents,
		fx.files,
		fx.tags,
		services.NewSeriesService(client.Client),
		fx.prompts,
		llmclient.NewStubClient(llmResponses),
		ocr.NewStubClient("stub extracted text", 0.9),
		g,
		typelock.New(client.DB(), 10*time.Millisecond, time.Second),
		stages.DefaultPromptConfig(),
	)
	return fx
}

// seedActivePrompt creates and activates a prompt version, returning it.
func (fx *flowFixture) seedActivePrompt(t *testing.T, promptType prompt.PromptType, documentType *string, text string) *ent.Prompt {
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
