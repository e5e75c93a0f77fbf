package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Account holds the schema definition for the Account entity.
//
// The internal ent id (int64, auto-increment) is the "internal id" of
// spec.md §3 — never reused, used only server-side. The uuid field is
// the public id handed to clients (base64url on the wire).
type Account struct {
	ent.Schema
}

// Fields of the Account.
func (Account) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("uuid", uuid.UUID{}).
			Default(uuid.New).
			Unique().
			Immutable(),
		field.String("email").
			NotEmpty(),
		field.Bool("is_bot").
			Default(false),
		field.Time("birthdate"),
		field.Enum("state").
			Values("initial_setup", "normal", "banned", "pending_deletion").
			Default("initial_setup"),
		field.Enum("visibility").
			Values("private", "public", "pending_private", "pending_public").
			Default("private"),
		field.Uint64("permissions").
			Default(0).
			Comment("bitfield of admin capabilities"),
		field.Uint64("client_features").
			Default(0).
			Comment("bitset of per-account client feature flags, see ClientConfigChanged"),
		field.Bool("locked").
			Default(false),
		field.Time("deletion_requested_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Account.
func (Account) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("profile", Profile.Type).
			Unique(),
		edge.To("daily_likes", DailyLikesLeft.Type).
			Unique(),
		edge.To("push_state", PushNotificationState.Type).
			Unique(),
		edge.To("access_tokens", AccessToken.Type),
		edge.To("refresh_tokens", RefreshToken.Type),
		edge.To("string_moderations", ProfileModeration.Type),
		edge.To("media", MediaContent.Type),
	}
}

// Indexes of the Account.
func (Account) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("state"),
		index.Fields("visibility"),
		index.Fields("email").
			Unique(),
	}
}
