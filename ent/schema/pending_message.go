package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PendingMessage holds a chat message awaiting delivery, numbered
// consecutively from 1 within its interaction per spec.md §4.G. Stored
// as opaque bytes — the server does not interpret message content;
// end-to-end format is out of scope per spec.md §4.G.
type PendingMessage struct {
	ent.Schema
}

// Fields of the PendingMessage.
func (PendingMessage) Fields() []ent.Field {
	return []ent.Field{
		field.Int("interaction_id"),
		field.Int64("account_id_sender"),
		field.Int64("account_id_receiver"),
		field.Int32("message_number"),
		field.Bytes("message_text"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the PendingMessage.
func (PendingMessage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("interaction_id", "message_number").
			Unique(),
		index.Fields("account_id_receiver"),
	}
}

// ApiUsageEvent holds the history-DB append-only counter row of
// spec.md §6 ("History DB mirrors append-only time-series for
// statistics"). Written outside the write-executor's single-writer
// mutex — it has no bearing on the core's transactional invariants.
type ApiUsageEvent struct {
	ent.Schema
}

// Fields of the ApiUsageEvent.
func (ApiUsageEvent) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("account_id").
			Optional().
			Nillable(),
		field.String("route"),
		field.Int16("status_code"),
		field.String("client_version").
			Optional(),
		field.String("ip_country").
			Optional(),
		field.Int32("duration_micros"),
		field.Time("recorded_at").
			Default(time.Now).
			Immutable(),
	}
}
