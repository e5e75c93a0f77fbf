package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Profile holds the schema definition for the Profile entity.
//
// version is rotated (new random UUID) whenever a field visible in a
// public profile changes, per spec.md §3. Attribute values and filter
// settings are stored as JSON since the attribute schema (bitflag set /
// two-level enum / sorted number list) is server-configured, not a
// fixed column set.
type Profile struct {
	ent.Schema
}

// Fields of the Profile.
func (Profile) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("version", uuid.UUID{}).
			Default(uuid.New),
		field.String("name").
			Default(""),
		field.Int("age").
			Min(18).
			Max(99),
		field.Text("profile_text").
			Default(""),
		field.Float("location_lat").
			Default(0),
		field.Float("location_lon").
			Default(0),
		field.Int("search_age_min").
			Min(18).
			Max(99).
			Default(18),
		field.Int("search_age_max").
			Min(18).
			Max(99).
			Default(99),
		field.Uint32("search_group_flags").
			Default(0xFFFFFFFF),
		field.JSON("attribute_values", []ProfileAttributeValue{}).
			Optional().
			Comment("sorted by attribute_id; number-list values ascending"),
		field.JSON("filter_settings", FilterSettings{}).
			Optional(),
		field.Time("last_seen_at").
			Default(time.Now),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("edited_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// ProfileAttributeValue is one entry of a profile's attribute-value JSON
// blob. Mode is implied by which of the value fields is populated, per
// the attribute's server-side schema definition (looked up by AttributeID
// at evaluation time, not stored per-value).
type ProfileAttributeValue struct {
	AttributeID int32   `json:"attribute_id"`
	Bitflags    uint16  `json:"bitflags,omitempty"`
	TopLevel    *int32  `json:"top_level,omitempty"`
	SubLevel    *int32  `json:"sub_level,omitempty"`
	Numbers     []int32 `json:"numbers,omitempty"`
}

// FilterSettings is the account's active search/filter configuration
// used by the profile iterator (spec.md §4.F).
type FilterSettings struct {
	LastSeenWindowSeconds  int64                   `json:"last_seen_window_seconds,omitempty"`
	ProfileCreatedAfter    *time.Time              `json:"profile_created_after,omitempty"`
	ProfileEditedAfter     *time.Time              `json:"profile_edited_after,omitempty"`
	MinProfileTextLength   int32                   `json:"min_profile_text_length,omitempty"`
	MaxProfileTextLength   int32                   `json:"max_profile_text_length,omitempty"`
	MaxDistanceKm          float64                 `json:"max_distance_km,omitempty"`
	RandomOrder            bool                    `json:"random_order,omitempty"`
	UnlimitedLikes         bool                    `json:"unlimited_likes,omitempty"`
	AttributeFilters       []ProfileAttributeValue `json:"attribute_filters,omitempty"`
}

// Edges of the Profile.
//
// Moderation state for the profile's name and text lives on Account
// (ProfileModeration rows keyed by content_type), not here — see
// ent/schema/profile_moderation.go.
func (Profile) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("account", Account.Type).
			Ref("profile").
			Unique().
			Required(),
	}
}

// Indexes of the Profile.
func (Profile) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("location_lat", "location_lon"),
	}
}
