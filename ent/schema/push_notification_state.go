package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// PushNotificationState holds the schema for spec.md §3's per-account
// push bookkeeping: pending/sent flag bitsets, device & notification
// tokens, and the sync version clients use to detect VAPID key rotation.
type PushNotificationState struct {
	ent.Schema
}

// Fields of the PushNotificationState.
func (PushNotificationState) Fields() []ent.Field {
	return []ent.Field{
		field.String("device_token").
			Optional().
			Comment("platform-opaque APNs/FCM token"),
		field.String("notification_token").
			Optional().
			Comment("server-minted, handed to the client to correlate delivery receipts"),
		field.Uint32("pending_flags").
			Default(0),
		field.Uint32("sent_flags").
			Default(0),
		field.Uint32("info_sync_version").
			Default(0),
	}
}

// Edges of the PushNotificationState.
func (PushNotificationState) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("push_state").
			Unique().
			Required(),
	}
}
