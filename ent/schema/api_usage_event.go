package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ApiUsageEvent is an append-only counter row for API-usage and
// client-version history (spec.md §9's "dual DB is a performance split"
// note, supplemented from original_source/'s api_usage/client_version
// history tables). Written outside the write executor's single-writer
// section: history rows don't participate in any entity invariant, so
// serializing them with account/profile writes would only add latency.
type ApiUsageEvent struct {
	ent.Schema
}

// Fields of the ApiUsageEvent.
func (ApiUsageEvent) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("account_id").
			Comment("0 for unauthenticated requests (e.g. register)"),
		field.String("route").
			Comment("echo route pattern, e.g. /api/v1/profile/iterator/next"),
		field.String("method"),
		field.Int("status_code"),
		field.String("client_version").
			Optional().
			Default(""),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the ApiUsageEvent.
func (ApiUsageEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("route", "created_at"),
		index.Fields("account_id", "created_at"),
	}
}
