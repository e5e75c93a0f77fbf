package geoindex

// Rect is an inclusive cell-coordinate rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY int32
}

// Contains reports whether c falls within r.
func (r Rect) Contains(c Coord) bool {
	return c.X >= r.MinX && c.X <= r.MaxX && c.Y >= r.MinY && c.Y <= r.MaxY
}

// clampToBounds intersects r with the grid's non-border interior.
func (g *Grid) clampToBounds(r Rect) Rect {
	if r.MinX < 1 {
		r.MinX = 1
	}
	if r.MinY < 1 {
		r.MinY = 1
	}
	if r.MaxX > g.Width-2 {
		r.MaxX = g.Width - 2
	}
	if r.MaxY > g.Height-2 {
		r.MaxY = g.Height - 2
	}
	return r
}

// VisitFunc is called once per non-empty cell encountered during a scan,
// with the cell's profiles in the order Grid.Profiles returns them (map
// order, not insertion order). Returning false
// stops the scan early (the caller has enough candidates for a page).
type VisitFunc func(at Coord, profiles []ProfileLink) (more bool)

// ScanSpiral visits cells of area in an outward ring order centered on
// start. maxRadius bounds how many rings are walked (callers derive it
// from the configured max-distance-km and the grid's cell size). There
// is no inner bound: every call starts again at start, and a caller
// resuming a scan skips the rings it has already served (pkg/iterator
// does this by ring radius).
//
// Within each ring, horizontal and vertical runs use the grid's skip
// pointers to jump directly over empty cells instead of visiting them
// one at a time — the "following skip pointers to bypass empty regions"
// behavior spec.md §4.D describes for query().
func (g *Grid) ScanSpiral(area Rect, start Coord, maxRadius int32, visit VisitFunc) {
	area = g.clampToBounds(area)
	if !area.Contains(start) {
		// Caller's start fell outside area (e.g. account moved since the
		// iterator session was anchored); begin from area's center.
		start = Coord{X: (area.MinX + area.MaxX) / 2, Y: (area.MinY + area.MaxY) / 2}
	}

	if !g.visitCellSkipping(start, Right, area, visit) {
		return
	}

	for radius := int32(1); radius <= maxRadius; radius++ {
		ring := ringCells(start, radius)
		for _, seg := range ring {
			if !area.Contains(seg.at) {
				continue
			}
			if !g.visitCellSkipping(seg.at, seg.axis, area, visit) {
				return
			}
		}
		if area.MinX >= start.X-radius && area.MaxX <= start.X+radius &&
			area.MinY >= start.Y-radius && area.MaxY <= start.Y+radius {
			// The entire bounded area is now covered.
			return
		}
	}
}

// visitCellSkipping visits `at`; if it is empty, it follows the skip
// pointer along axis to jump to the next non-empty cell and visits that
// instead (still subject to area containment), rather than requiring
// the outer ring walk to step through every empty cell individually.
func (g *Grid) visitCellSkipping(at Coord, axis Direction, area Rect, visit VisitFunc) bool {
	if g.IsEmpty(at) {
		next, ok := g.NextNonEmpty(at, axis)
		if !ok || !area.Contains(next) {
			return true
		}
		at = next
	}
	profiles := g.Profiles(at)
	if len(profiles) == 0 {
		return true
	}
	return visit(at, profiles)
}

type ringSegment struct {
	at   Coord
	axis Direction
}

// ringCells enumerates the square ring of the given radius around
// center in clockwise order starting at its top-left corner, tagging
// each cell with the axis along which it was reached (used to pick
// which skip pointer to try first).
func ringCells(center Coord, radius int32) []ringSegment {
	if radius <= 0 {
		return []ringSegment{{at: center, axis: Right}}
	}
	var out []ringSegment
	top := center.Y - radius
	bottom := center.Y + radius
	left := center.X - radius
	right := center.X + radius

	for x := left; x <= right; x++ {
		out = append(out, ringSegment{at: Coord{X: x, Y: top}, axis: Right})
	}
	for y := top + 1; y <= bottom; y++ {
		out = append(out, ringSegment{at: Coord{X: right, Y: y}, axis: Down})
	}
	for x := right - 1; x >= left; x-- {
		out = append(out, ringSegment{at: Coord{X: x, Y: bottom}, axis: Left})
	}
	for y := bottom - 1; y > top; y-- {
		out = append(out, ringSegment{at: Coord{X: left, Y: y}, axis: Up})
	}
	return out
}
