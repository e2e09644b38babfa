package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// FileDocument holds the schema for the file<->document junction. File
// membership is derivable from tags for llm-sourced files (spec §3); this
// table is the cache the File stage writes to and File-Summarize reads
// from, so aggregation never has to re-derive membership via a tag scan.
type FileDocument struct {
	ent.Schema
}

// Fields of the FileDocument.
func (FileDocument) Fields() []ent.Field {
	return []ent.Field{
		field.String("file_id").
			Immutable(),
		field.String("document_id").
			Immutable(),
		field.Time("added_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the FileDocument.
func (FileDocument) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("file", File.Type).
			Unique().
			Required().
			Field("file_id"),
		edge.To("document", Document.Type).
			Unique().
			Required().
			Field("document_id"),
	}
}

// Indexes of the FileDocument.
func (FileDocument) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("file_id", "document_id").Unique(),
		index.Fields("document_id"),
	}
}
