package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// File holds the schema definition for the File entity.
// A file aggregates documents that share a tag set into a regenerated
// multi-document summary. Membership is derivable from the tag signature
// for llm-sourced files; user files are keyed the same way but never
// auto-regenerated from tag drift.
type File struct {
	ent.Schema
}

// Fields of the File.
func (File) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("file_id").
			Unique().
			Immutable(),
		field.JSON("tags", []string{}).
			Comment("Normalized tags, sorted, the same order as tag_signature"),
		field.String("tag_signature").
			Comment("Colon-joined normalized+sorted tag list; the file's identity key"),
		field.Enum("source").
			Values("llm", "user").
			Default("llm"),
		field.Enum("status").
			Values("pending", "generating", "generated", "outdated", "regenerating", "permanently_failed").
			Default("pending"),
		field.Text("summary_text").
			Optional().
			Nillable(),
		field.JSON("summary_metadata", map[string]interface{}{}).
			Optional(),
		field.Time("last_generated_at").
			Optional().
			Nillable(),
		field.Time("processing_started_at").
			Optional().
			Nillable(),
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

// Edges of the File.
func (File) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("documents", Document.Type).
			Through("file_documents", FileDocument.Type),
	}
}

// Indexes of the File.
func (File) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		// Uniqueness is only meaningful among llm-sourced files: two user
		// files may legitimately share a tag signature with an llm file.
		index.Fields("source", "tag_signature").
			Unique().
			Annotations(entsql.IndexWhere("source = 'llm'")),
		index.Fields("status", "processing_started_at").
			Annotations(entsql.IndexWhere("processing_started_at IS NOT NULL")),
	}
}
