package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AccountInteraction holds the unordered-pair interaction row of
// spec.md §3: at most one per unordered pair, state Empty → Like → Match
// (on reciprocal like) or Empty → Block.
type AccountInteraction struct {
	ent.Schema
}

// Fields of the AccountInteraction.
func (AccountInteraction) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("account_id_sender").
			Comment("the account that sent the most recent Like, or initiated the Block"),
		field.Int64("account_id_receiver"),
		field.Enum("state").
			Values("empty", "like", "block", "match").
			Default("empty"),
		field.Int32("message_counter").
			Default(0).
			Comment("strictly increasing once Match; pending messages numbered 1..N"),
		field.Int32("next_expected_message_id_sender_to_receiver").
			Default(1),
		field.Int32("next_expected_message_id_receiver_to_sender").
			Default(1),
	}
}

// Indexes of the AccountInteraction.
func (AccountInteraction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("account_id_sender", "account_id_receiver").
			Unique(),
	}
}

// AccountInteractionIndex holds the schema for the auxiliary lookup
// table: one row per ordered pair (a,b) and (b,a), both pointing at the
// same AccountInteraction row id. This lets either participant look up
// their shared interaction by (self, other) without a sender/receiver
// branch at query time.
type AccountInteractionIndex struct {
	ent.Schema
}

// Fields of the AccountInteractionIndex.
func (AccountInteractionIndex) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("account_id_first"),
		field.Int64("account_id_second"),
		field.Int("interaction_id"),
	}
}

// Indexes of the AccountInteractionIndex.
func (AccountInteractionIndex) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("account_id_first", "account_id_second").
			Unique(),
	}
}
