package geoindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertRemoveRoundTrip(t *testing.T) {
	g := NewGrid(10, 10)
	key := Coord{X: 5, Y: 5}

	g.Insert(1, key)
	assert.False(t, g.IsEmpty(key))
	assert.ElementsMatch(t, []ProfileLink{1}, g.Profiles(key))

	g.Remove(1, key)
	assert.True(t, g.IsEmpty(key))
	assert.Empty(t, g.Profiles(key))
}

func TestProfileInAtMostOneCell(t *testing.T) {
	g := NewGrid(10, 10)
	a := Coord{X: 3, Y: 3}
	b := Coord{X: 7, Y: 7}

	g.Insert(1, a)
	g.Move(1, a, b)

	assert.True(t, g.IsEmpty(a))
	loc, ok := g.Location(1)
	require.True(t, ok)
	assert.Equal(t, b, loc)
}

// TestSkipPointersNeverTargetEmptyCell walks the whole grid after a
// sequence of inserts/removes and asserts every non-nil skip pointer
// targets a currently non-empty cell, per spec.md §8's invariant.
func TestSkipPointersNeverTargetEmptyCell(t *testing.T) {
	g := NewGrid(12, 12)
	occupied := []Coord{{3, 3}, {3, 7}, {8, 3}, {8, 8}, {5, 5}}
	for i, c := range occupied {
		g.Insert(ProfileLink(i+1), c)
	}
	g.Remove(ProfileLink(5), Coord{5, 5})

	for x := int32(1); x < g.Width-1; x++ {
		for y := int32(1); y < g.Height-1; y++ {
			at := Coord{X: x, Y: y}
			if !g.IsEmpty(at) {
				continue
			}
			for _, dir := range allDirections {
				target, ok := g.NextNonEmpty(at, dir)
				if !ok {
					continue
				}
				assert.Falsef(t, g.IsEmpty(target),
					"cell %v skip[%v] points at empty cell %v", at, dir, target)
			}
		}
	}
}

func TestScanSpiralFindsAllOccupiedCellsInArea(t *testing.T) {
	g := NewGrid(20, 20)
	want := map[Coord]bool{
		{10, 10}: true,
		{10, 12}: true,
		{12, 10}: true,
		{9, 9}:   true,
	}
	i := ProfileLink(1)
	for c := range want {
		g.Insert(i, c)
		i++
	}

	area := Rect{MinX: 1, MinY: 1, MaxX: 18, MaxY: 18}
	found := map[Coord]bool{}
	g.ScanSpiral(area, Coord{10, 10}, 10, func(at Coord, profiles []ProfileLink) bool {
		found[at] = true
		return true
	})

	assert.Equal(t, want, found)
}

func TestOffsetByKmClampsAtPoles(t *testing.T) {
	lat, lon := OffsetByKm(89.999, 0, 100, 100)
	assert.LessOrEqual(t, lat, 90.0)
	assert.GreaterOrEqual(t, lon, -180.0)
	assert.LessOrEqual(t, lon, 180.0)
}

func TestClampLatLon(t *testing.T) {
	assert.Equal(t, 90.0, ClampLat(120))
	assert.Equal(t, -90.0, ClampLat(-120))
	assert.Equal(t, 180.0, ClampLon(200))
	assert.Equal(t, -180.0, ClampLon(-200))
}
