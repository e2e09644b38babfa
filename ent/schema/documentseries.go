package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DocumentSeries holds the schema for the document<->series junction.
type DocumentSeries struct {
	ent.Schema
}

// Fields of the DocumentSeries.
func (DocumentSeries) Fields() []ent.Field {
	return []ent.Field{
		field.String("document_id").
			Immutable(),
		field.String("series_id").
			Immutable(),
		field.Time("added_at").
			Default(time.Now).
			Immutable(),
		field.String("added_by").
			Default("series-engine").
			Comment("Identifies the actor that created the membership"),
	}
}

// Edges of the DocumentSeries.
func (DocumentSeries) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("document", Document.Type).
			Unique().
			Required().
			Field("document_id"),
		edge.To("series", Series.Type).
			Unique().
			Required().
			Field("series_id"),
	}
}

// Indexes of the DocumentSeries.
func (DocumentSeries) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "series_id").Unique(),
		index.Fields("series_id"),
	}
}
