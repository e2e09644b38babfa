package stages

import (
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/llmclient"
	"github.com/codeready-toolchain/docfiler/pkg/ocr"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
)

// PromptConfig names the known document types and the popular-tag lookup
// Classify needs to build its prompt input. Both are small, slow-changing
// lists an operator configures rather than data the store derives on every
// call.
type PromptConfig struct {
	// KnownDocumentTypes is the enumerated set Classify offers the LLM.
	KnownDocumentTypes []string

	// PopularTagLimit bounds how many popular tags Classify includes as
	// hints (spec §4.B.2: "top-N popular tags").
	PopularTagLimit int

	// MinDocumentsForScoring is Score-Classification/Score-Summary's
	// skip-scoring threshold (spec §4.B.3: "fewer than 5 documents").
	MinDocumentsForScoring int
}

// DefaultPromptConfig returns the spec's literal defaults.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		PopularTagLimit:        20,
		MinDocumentsForScoring: 5,
	}
}

// Deps bundles every collaborator a stage task needs: the State Store
// services, the external LLM/OCR clients, the process-local Concurrency
// Gate, and the advisory-lock-backed Per-Type Serializer. Constructed once at orchestrator startup
// and passed by value into every stage function — never a package-level
// singleton (spec §9 "Global singletons").
type Deps struct {
	Documents *services.DocumentService
	Files     *services.FileService
	Tags      *services.TagService
	Series    *services.SeriesService
	Prompts   *services.PromptService

	LLM llmclient.Client
	OCR ocr.Client

	Gate      *gate.Gate
	TypeLocks *typelock.Locker

	Prompt PromptConfig
}

// NewDeps builds a Deps from its collaborators.
func NewDeps(
	documents *services.DocumentService,
	files *services.FileService,
	tags *services.TagService,
	series *services.SeriesService,
	prompts *services.PromptService,
	llm llmclient.Client,
	ocrClient ocr.Client,
	g *gate.Gate,
	typeLocks *typelock.Locker,
	promptCfg PromptConfig,
) Deps {
	return Deps{
		Documents: documents,
		Files:     files,
		Tags:      tags,
		Series:    series,
		Prompts:   prompts,
		LLM:       llm,
		OCR:       ocrClient,
		Gate:      g,
		TypeLocks: typeLocks,
		Prompt:    promptCfg,
	}
}
