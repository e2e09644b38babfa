package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DocumentTag holds the schema for the document<->tag junction, carrying
// the tag's source ("system", "llm") alongside the membership itself.
type DocumentTag struct {
	ent.Schema
}

// Fields of the DocumentTag.
func (DocumentTag) Fields() []ent.Field {
	return []ent.Field{
		field.String("document_id").
			Immutable(),
		field.String("tag_id").
			Immutable(),
		field.Enum("source").
			Values("system", "llm").
			Default("llm"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the DocumentTag.
func (DocumentTag) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("document", Document.Type).
			Unique().
			Required().
			Field("document_id"),
		edge.To("tag", Tag.Type).
			Unique().
			Required().
			Field("tag_id"),
	}
}

// Indexes of the DocumentTag.
func (DocumentTag) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "tag_id").Unique(),
		index.Fields("tag_id"),
	}
}
