package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MediaContent holds one uploaded media item and its moderation state
// (spec.md §3, §4.H's "profile-content" queue).
type MediaContent struct {
	ent.Schema
}

// Fields of the MediaContent.
func (MediaContent) Fields() []ent.Field {
	return []ent.Field{
		field.Bytes("storage_key").
			Comment("opaque pointer into blob storage; the image worker child process reads/writes by this key"),
		field.Int16("content_type_number").
			Comment("image format discriminator used by the image worker contract"),
		field.Bool("is_initial_content").
			Default(false).
			Comment("first accepted content gates Pending→Public visibility per spec.md §4.H"),
		field.Bool("is_security_content").
			Default(false),
		field.Enum("moderation_state").
			Values(
				"waiting_bot_or_human",
				"waiting_human",
				"accepted_by_bot",
				"accepted_by_human",
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
		field.Int32("queue_number").
			Default(0).
			Comment("monotonic per-queue-type sequence used for FIFO ordering"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the MediaContent.
func (MediaContent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("media").
			Unique().
			Required(),
	}
}

// Indexes of the MediaContent.
func (MediaContent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("moderation_state", "created_at"),
	}
}
