package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Document holds the schema definition for the Document entity.
// A document is a single ingested item (scan/photo/PDF) advancing through
// the OCR -> classify -> summarize -> score -> file pipeline.
type Document struct {
	ent.Schema
}

// Fields of the Document.
func (Document) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("document_id").
			Unique().
			Immutable(),
		field.String("folder_path").
			Comment("Inbox location the scanner populated"),
		field.String("filename").
			Optional().
			Nillable(),
		field.String("mime_type").
			Optional().
			Nillable(),
		field.Int64("size_bytes").
			Optional().
			Nillable(),
		field.Enum("status").
			Values(
				"pending",
				"ocr_in_progress",
				"ocr_completed",
				"classifying",
				"classified",
				"scoring_classification",
				"scored_classification",
				"summarizing",
				"summarized",
				"scoring_summary",
				"scored_summary",
				"filing",
				"filed",
				"completed",
				"failed",
				"permanently_failed",
			).
			Default("pending"),
		field.Text("extracted_text").
			Optional().
			Nillable().
			Comment("Full OCR output"),
		field.String("document_type").
			Optional().
			Nillable(),
		field.Float("classification_confidence").
			Optional().
			Nillable(),
		field.Text("classification_reasoning").
			Optional().
			Nillable(),
		field.Text("summary").
			Optional().
			Nillable(),
		field.JSON("structured_data", map[string]interface{}{}).
			Optional().
			Comment("Free-form key/value map written by Summarize"),
		field.Time("processing_started_at").
			Optional().
			Nillable().
			Comment("Start of the current stage attempt, stamped by BeginStage"),
		field.Int("retry_count").
			Default(0),
		field.Int("max_retries").
			Default(3),
		field.Text("last_error").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Document.
func (Document) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("tags", Tag.Type).
			Through("document_tags", DocumentTag.Type),
		edge.To("series", Series.Type).
			Through("document_series", DocumentSeries.Type),
		edge.To("files", File.Type).
			Through("file_documents", FileDocument.Type),
	}
}

// Indexes of the Document.
func (Document) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("document_type"),
		index.Fields("status", "updated_at"),
		// Rows with a stage attempt in progress, by status. The stuck-row
		// sweep filters on (status, updated_at) instead.
		index.Fields("status", "processing_started_at").
			Annotations(entsql.IndexWhere("processing_started_at IS NOT NULL")),
	}
}
