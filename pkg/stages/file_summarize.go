package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	entfile "github.com/codeready-toolchain/docfiler/ent/file"
	"github.com/codeready-toolchain/docfiler/ent/prompt"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/services"
)

// fileSummarizeMember is one member document's contribution to the
// aggregate the file-summarizer prompt is given.
type fileSummarizeMember struct {
	DocumentType   string                 `json:"document_type"`
	Summary        string                 `json:"summary"`
	StructuredData map[string]interface{} `json:"structured_data"`
}

// fileSummarizeInput is what FileSummarize sends the LLM.
type fileSummarizeInput struct {
	Tags    []string              `json:"tags"`
	Members []fileSummarizeMember `json:"members"`
}

// fileSummarizeResponse is the LLM's required JSON shape (spec §4.B.7).
type fileSummarizeResponse struct {
	SummaryText string                 `json:"summary_text"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// FileSummarize requires a file in status pending or outdated. It loads the
// file's cached member documents (newest first), calls the file-summarizer
// LLM with their aggregated content, writes summary_text + metadata, and
// advances to generated, stamping last_generated_at (spec §4.B.7, §4.F).
func FileSummarize(ctx context.Context, deps Deps, fileID string) error {
	f, err := deps.Files.GetByID(ctx, fileID)
	if err != nil {
		return Domain(fmt.Errorf("load file %s: %w", fileID, err))
	}

	var inProgress entfile.Status
	switch f.Status {
	case entfile.StatusPending:
		inProgress = entfile.StatusGenerating
	case entfile.StatusOutdated:
		inProgress = entfile.StatusRegenerating
	default:
		return nil // not in a launchable status; another worker is ahead of us
	}

	advanced, err := deps.Files.BeginStage(ctx, fileID, f.Status, inProgress)
	if err != nil {
		return Transient(fmt.Errorf("begin file-summarize stage: %w", err))
	}
	if !advanced {
		return nil
	}

	members, err := deps.Files.MembersOf(ctx, fileID)
	if err != nil {
		return Transient(fmt.Errorf("load members of file %s: %w", fileID, err))
	}

	active, err := deps.Prompts.GetActive(ctx, prompt.PromptTypeFileSummarizer, nil)
	if err != nil {
		if err == services.ErrNotFound {
			return Domain(fmt.Errorf("no active file_summarizer prompt"))
		}
		return Transient(fmt.Errorf("load active file_summarizer prompt: %w", err))
	}

	input := fileSummarizeInput{Tags: f.Tags, Members: make([]fileSummarizeMember, len(members))}
	for i, m := range members {
		input.Members[i] = fileSummarizeMember{
			DocumentType:   stringOrEmpty(m.DocumentType),
			Summary:        stringOrEmpty(m.Summary),
			StructuredData: m.StructuredData,
		}
	}

	var raw string
	err = deps.Gate.Do(ctx, gate.FileGen, func(ctx context.Context) error {
		resp, invokeErr := deps.LLM.Invoke(ctx, active.PromptText, input)
		raw = resp
		return invokeErr
	})
	if err != nil {
		return classifyExternalErr(ctx, err)
	}

	var parsed fileSummarizeResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Schema(fmt.Errorf("parse file-summarize response: %w", err))
	}
	if parsed.SummaryText == "" {
		return Schema(fmt.Errorf("file-summarize response missing summary_text"))
	}

	_, err = deps.Files.CompareAndSet(ctx, fileID, inProgress, entfile.StatusGenerated,
		func(u *ent.FileUpdate) {
			u.SetSummaryText(parsed.SummaryText).
				SetSummaryMetadata(parsed.Metadata).
				SetLastGeneratedAt(time.Now())
		})
	if err != nil {
		return Transient(fmt.Errorf("advance file %s to generated: %w", fileID, err))
	}
	return nil
}
