package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Prompt holds the schema definition for the Prompt entity.
// Prompts are append-only and versioned per (prompt_type, document_type)
// scope; deactivation is a flag flip, never a delete.
type Prompt struct {
	ent.Schema
}

// Fields of the Prompt.
func (Prompt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("prompt_id").
			Unique().
			Immutable(),
		field.Enum("prompt_type").
			Values("classifier", "summarizer", "series_detector", "file_summarizer").
			Immutable(),
		field.String("document_type").
			Optional().
			Nillable().
			Immutable().
			Comment("Scope; null means the prompt applies across all document types"),
		field.Int("version").
			Comment("Monotonic per (prompt_type, document_type) scope"),
		field.Text("prompt_text"),
		field.Float("performance_score").
			Optional().
			Nillable(),
		field.Bool("can_evolve").
			Default(true),
		field.Float("score_ceiling").
			Optional().
			Nillable(),
		field.Bool("regenerates_on_update").
			Default(false).
			Comment("Reserved for aggregation prompts, e.g. series_summarizer"),
		field.Bool("is_active").
			Default(false),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Prompt.
func (Prompt) Edges() []ent.Edge {
	return nil
}

// Indexes of the Prompt.
func (Prompt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("prompt_type", "document_type", "version").Unique(),
		// At most one active row per scope with a non-null document_type.
		// Postgres treats NULLs as distinct in a unique index, so this index
		// does not constrain active rows whose document_type is null.
		index.Fields("prompt_type", "document_type").
			Unique().
			Annotations(entsql.IndexWhere("is_active")),
	}
}
