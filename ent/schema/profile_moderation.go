package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProfileModeration holds one row per (account, content-type) for
// profile strings (name, text), per spec.md §3. Media content
// moderation is a separate row per MediaContent, see media_content.go.
type ProfileModeration struct {
	ent.Schema
}

// Fields of the ProfileModeration.
func (ProfileModeration) Fields() []ent.Field {
	return []ent.Field{
		field.Enum("content_type").
			Values("name", "text"),
		field.Enum("state").
			Values(
				"waiting_bot_or_human",
				"waiting_human",
				"accepted_by_bot",
				"accepted_by_human",
				"accepted_by_allowlist",
				"rejected_by_bot",
				"rejected_by_human",
			).
			Default("waiting_bot_or_human"),
		field.Int64("moderator_account_id").
			Optional().
			Nillable(),
		field.Int16("rejected_reason_category").
			Optional().
			Nillable(),
		field.String("rejected_reason_details").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now),
	}
}

// Edges of the ProfileModeration.
func (ProfileModeration) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("string_moderations").
			Unique().
			Required(),
	}
}

// Indexes of the ProfileModeration.
func (ProfileModeration) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("content_type", "state"),
		index.Fields("created_at"),
		index.Fields("content_type").
			Edges("account").
			Unique(),
	}
}

// ProfileNameAllowlist holds the schema for the name allowlist of
// spec.md §4.H. Lookup is on trimmed, lowercased name.
type ProfileNameAllowlist struct {
	ent.Schema
}

// Fields of the ProfileNameAllowlist.
func (ProfileNameAllowlist) Fields() []ent.Field {
	return []ent.Field{
		field.String("profile_name").
			Unique().
			Immutable().
			Comment("trimmed, lowercased"),
		field.Int64("name_creator_account_id"),
		field.Int64("name_moderator_account_id"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}
