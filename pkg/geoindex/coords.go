package geoindex

import "math"

// EarthRadiusKm is the spherical approximation radius used by
// spec.md §4.D's offset-by-km formula.
const EarthRadiusKm = 6378.0

// zoomTile is one row of the closed zoom→tile-km table spec.md §4.D
// references for deriving a grid resolution from a configured cell-side
// length. Values approximate standard web-mercator tile sizes at the
// equator, halving with each zoom level.
type zoomTile struct {
	Zoom   int
	TileKm float64
}

var zoomTable = []zoomTile{
	{Zoom: 0, TileKm: 40075.0},
	{Zoom: 1, TileKm: 20037.5},
	{Zoom: 2, TileKm: 10018.75},
	{Zoom: 3, TileKm: 5009.4},
	{Zoom: 4, TileKm: 2504.7},
	{Zoom: 5, TileKm: 1252.3},
	{Zoom: 6, TileKm: 626.2},
	{Zoom: 7, TileKm: 313.1},
	{Zoom: 8, TileKm: 156.5},
	{Zoom: 9, TileKm: 78.3},
	{Zoom: 10, TileKm: 39.1},
	{Zoom: 11, TileKm: 19.6},
	{Zoom: 12, TileKm: 9.8},
	{Zoom: 13, TileKm: 4.9},
	{Zoom: 14, TileKm: 2.4},
	{Zoom: 15, TileKm: 1.2},
	{Zoom: 16, TileKm: 0.61},
	{Zoom: 17, TileKm: 0.3},
	{Zoom: 18, TileKm: 0.15},
}

// ZoomForCellSide picks the zoom level whose tile size is the closest
// match (smallest difference) to the configured cell-side length,
// breaking ties toward the coarser (lower-zoom) entry.
func ZoomForCellSide(cellSideKm float64) zoomTile {
	best := zoomTable[0]
	bestDelta := math.Abs(best.TileKm - cellSideKm)
	for _, zt := range zoomTable[1:] {
		delta := math.Abs(zt.TileKm - cellSideKm)
		if delta < bestDelta {
			best, bestDelta = zt, delta
		}
	}
	return best
}

// ClampLat clamps a latitude to [-90, 90].
func ClampLat(lat float64) float64 {
	return clamp(lat, -90, 90)
}

// ClampLon clamps a longitude to [-180, 180].
func ClampLon(lon float64) float64 {
	return clamp(lon, -180, 180)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OffsetByKm translates (lat, lon) by (dx, dy) kilometers east/north
// using the spherical approximation of spec.md §4.D, clamping the
// result to valid ranges.
func OffsetByKm(lat, lon, dx, dy float64) (newLat, newLon float64) {
	dLat := (dy / EarthRadiusKm) * (180 / math.Pi)
	newLat = ClampLat(lat + dLat)

	// Guard the degenerate case at the poles where cos(lat) ~ 0 would
	// blow up the longitude delta.
	latRad := lat * math.Pi / 180
	cosLat := math.Cos(latRad)
	if math.Abs(cosLat) < 1e-9 {
		return newLat, ClampLon(lon)
	}
	dLon := (dx / EarthRadiusKm) * (180 / math.Pi) / cosLat
	newLon = ClampLon(lon + dLon)
	return newLat, newLon
}

// Bounds describes the lat/lon rectangle the grid covers, and the cell
// resolution within it.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	CellSideKm     float64
}

// Dimensions computes (width, height) including the 1-cell border,
// clamped to the [3, 32768] bound of spec.md §3.
func (b Bounds) Dimensions() (width, height int32) {
	latKm := (b.MaxLat - b.MinLat) * 111.0 // ~km per degree latitude
	midLat := (b.MinLat + b.MaxLat) / 2
	lonKm := (b.MaxLon - b.MinLon) * 111.0 * math.Cos(midLat*math.Pi/180)

	cols := int32(math.Ceil(lonKm/b.CellSideKm)) + 2 // +2 for border
	rows := int32(math.Ceil(latKm/b.CellSideKm)) + 2

	return clampDim(cols), clampDim(rows)
}

func clampDim(v int32) int32 {
	if v < 3 {
		return 3
	}
	if v > 32768 {
		return 32768
	}
	return v
}

// CellFor maps a (lat, lon) to the interior grid cell it falls in,
// clamping to the innermost non-border ring if the point falls outside
// the configured bounds (it should not, given upstream lat/lon
// clamping, but the grid must never hand back a border coordinate).
func (b Bounds) CellFor(lat, lon float64, width, height int32) Coord {
	lat = ClampLat(lat)
	lon = ClampLon(lon)

	latSpan := b.MaxLat - b.MinLat
	lonSpan := b.MaxLon - b.MinLon

	var fy, fx float64
	if latSpan > 0 {
		fy = (b.MaxLat - lat) / latSpan // row 0 at MaxLat, increasing southward
	}
	if lonSpan > 0 {
		fx = (lon - b.MinLon) / lonSpan
	}

	innerW := width - 2
	innerH := height - 2
	x := int32(fx*float64(innerW)) + 1
	y := int32(fy*float64(innerH)) + 1

	if x < 1 {
		x = 1
	}
	if x > width-2 {
		x = width - 2
	}
	if y < 1 {
		y = 1
	}
	if y > height-2 {
		y = height - 2
	}
	return Coord{X: x, Y: y}
}
