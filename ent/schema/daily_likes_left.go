package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// DailyLikesLeft holds the per-account like quota of spec.md §3.
type DailyLikesLeft struct {
	ent.Schema
}

// Fields of the DailyLikesLeft.
func (DailyLikesLeft) Fields() []ent.Field {
	return []ent.Field{
		field.Int16("likes_left").
			Min(0),
		field.Time("latest_reset_time"),
		field.Uint32("sync_version").
			Default(0),
	}
}

// Edges of the DailyLikesLeft.
func (DailyLikesLeft) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("daily_likes").
			Unique().
			Required(),
	}
}
