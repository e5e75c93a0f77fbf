package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// AccessToken holds the schema for the short-lived bearer credential of
// spec.md §3 and §4.A, bound to the connecting address at issuance.
type AccessToken struct {
	ent.Schema
}

// Fields of the AccessToken.
func (AccessToken) Fields() []ent.Field {
	return []ent.Field{
		field.String("token").
			Unique().
			Immutable().
			Sensitive(),
		field.String("bound_address").
			Comment("remote IP recorded at issuance; resolve() rejects a mismatch"),
		field.Time("issued_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the AccessToken.
func (AccessToken) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("access_tokens").
			Unique().
			Required(),
	}
}

// RefreshToken holds the schema for the longer-lived single-use rotation
// credential of spec.md §3 and §4.A.
type RefreshToken struct {
	ent.Schema
}

// Fields of the RefreshToken.
func (RefreshToken) Fields() []ent.Field {
	return []ent.Field{
		field.String("token").
			Unique().
			Immutable().
			Sensitive(),
		field.Time("issued_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the RefreshToken.
func (RefreshToken) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("refresh_tokens").
			Unique().
			Required(),
	}
}
