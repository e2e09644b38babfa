package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Tag holds the schema definition for the Tag entity.
// Tags are normalized strings shared across documents regardless of the
// source (system-generated document-type tags, series tags, or LLM tags).
type Tag struct {
	ent.Schema
}

// Fields of the Tag.
func (Tag) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("tag_id").
			Unique().
			Immutable(),
		field.String("tag_normalized").
			Unique().
			Comment("Lowercased, punctuation/space-collapsed form"),
	}
}

// Edges of the Tag.
func (Tag) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("documents", Document.Type).
			Through("document_tags", DocumentTag.Type),
	}
}

// Indexes of the Tag.
func (Tag) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tag_normalized").Unique(),
	}
}
