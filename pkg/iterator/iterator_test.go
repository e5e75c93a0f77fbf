package iterator

import (
	"testing"

	entschema "github.com/afrodite/datingcore/ent/schema"
	"github.com/afrodite/datingcore/pkg/geoindex"
	"github.com/stretchr/testify/assert"
)

func int32p(v int32) *int32 { return &v }

func TestAttributesMatchBitflagMode(t *testing.T) {
	filters := []entschema.ProfileAttributeValue{{AttributeID: 1, Bitflags: 0b0110}}
	assert.True(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 1, Bitflags: 0b0100}}))
	assert.False(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 1, Bitflags: 0b1000}}))
	assert.False(t, attributesMatch(filters, nil))
}

func TestAttributesMatchTwoLevelEnumMode(t *testing.T) {
	filters := []entschema.ProfileAttributeValue{{AttributeID: 2, TopLevel: int32p(3), SubLevel: int32p(5)}}
	assert.True(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 2, TopLevel: int32p(3), SubLevel: int32p(5)}}))
	assert.False(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 2, TopLevel: int32p(3), SubLevel: int32p(6)}}))
	assert.False(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 2, TopLevel: int32p(4)}}))

	// Filter with no sub-level requirement only constrains top-level.
	topOnly := []entschema.ProfileAttributeValue{{AttributeID: 2, TopLevel: int32p(3)}}
	assert.True(t, attributesMatch(topOnly, []entschema.ProfileAttributeValue{{AttributeID: 2, TopLevel: int32p(3), SubLevel: int32p(9)}}))
}

func TestAttributesMatchNumberListMode(t *testing.T) {
	filters := []entschema.ProfileAttributeValue{{AttributeID: 3, Numbers: []int32{2, 4}}}
	assert.True(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 3, Numbers: []int32{1, 2, 3, 4, 5}}}))
	assert.False(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 3, Numbers: []int32{1, 4, 2}}}))
	assert.False(t, attributesMatch(filters, []entschema.ProfileAttributeValue{{AttributeID: 3, Numbers: []int32{1, 3}}}))
}

func TestChebyshev(t *testing.T) {
	assert.Equal(t, int32(0), chebyshev(geoindex.Coord{X: 5, Y: 5}, geoindex.Coord{X: 5, Y: 5}))
	assert.Equal(t, int32(3), chebyshev(geoindex.Coord{X: 2, Y: 8}, geoindex.Coord{X: 5, Y: 5}))
	assert.Equal(t, int32(4), chebyshev(geoindex.Coord{X: 9, Y: 1}, geoindex.Coord{X: 5, Y: 5}))
}

func TestHaversineKmZeroForSamePoint(t *testing.T) {
	assert.InDelta(t, 0, haversineKm(48.8, 2.3, 48.8, 2.3), 1e-9)
}

func TestHaversineKmRoughlyMatchesKnownDistance(t *testing.T) {
	// Paris to London is approximately 344km.
	d := haversineKm(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344, d, 15)
}

func TestRadiusForDistanceClampsToGridExtent(t *testing.T) {
	e := &Engine{
		grid:   &geoindex.Grid{Width: 20, Height: 20},
		bounds: geoindex.Bounds{CellSideKm: 5},
	}
	assert.Equal(t, int32(10), e.radiusForDistance(1000)) // clamps to maxDim/2
	assert.Equal(t, int32(2), e.radiusForDistance(10))    // ceil(10/5)
	assert.Equal(t, int32(10), e.radiusForDistance(0))    // unconfigured
}
