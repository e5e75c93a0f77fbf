// Package geoindex implements the location index of spec.md §3/§4.D: a
// 2-D grid of cells with per-cell nearest-neighbor "skip" pointers along
// each of the four axes, letting a query iterator skip empty regions in
// O(1) per hop instead of scanning every cell.
//
// The outermost row and column on each side are a reserved sentinel
// border (never populated) so skip-pointer walks never need a bounds
// check beyond "did we land on the border".
package geoindex

import "sync"

// ProfileLink identifies a placed profile. The index treats it as an
// opaque key; callers pass the account's internal id.
type ProfileLink int64

// Coord is a cell coordinate within the grid, border cells included.
type Coord struct {
	X, Y int32
}

// Direction is one of the four axes a cell's skip pointer tracks.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// dx, dy is the unit step for each direction.
func (d Direction) step() (int32, int32) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	default: // Right
		return 1, 0
	}
}

// opposite returns the reverse direction, used when propagating skip
// pointer updates to the neighbor on the other side of a transitioning
// cell.
func (d Direction) opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

var allDirections = [4]Direction{Up, Down, Left, Right}

type cell struct {
	profiles map[ProfileLink]struct{}
	skip     [4]*Coord // indexed by Direction; nil = no non-empty cell that way within bounds
}

func newCell() *cell {
	return &cell{profiles: make(map[ProfileLink]struct{})}
}

func (c *cell) empty() bool {
	return len(c.profiles) == 0
}

// Grid is the location index. Width and Height include the 1-cell border
// on each side, so usable cells are [1, Width-2] x [1, Height-2].
//
// Grid is guarded by a single RWMutex: inserts/removes/moves take the
// write lock (they only ever happen inside the write-command executor's
// single-writer section, so there is no write/write contention beyond
// what that already serializes); queries take the read lock for the
// duration of a single cell read, matching spec.md §5's "reads are
// consistent within a single cell read" guarantee — a query may observe
// a profile set that is stale by one insertion/removal relative to the
// skip pointers it followed to get there, which spec.md accepts because
// clients tolerate duplicate/skipped profiles.
type Grid struct {
	Width, Height int32

	mu       sync.RWMutex
	cells    [][]*cell
	location map[ProfileLink]Coord
}

// NewGrid allocates a Width x Height grid (border included). Panics if
// width or height falls outside the [3, 32768] bound of spec.md §3 —
// this is a configuration error, not a runtime one.
func NewGrid(width, height int32) *Grid {
	if width < 3 || width > 32768 || height < 3 || height > 32768 {
		panic("geoindex: width and height must be in [3, 32768]")
	}
	cells := make([][]*cell, width)
	for x := range cells {
		cells[x] = make([]*cell, height)
		for y := range cells[x] {
			cells[x][y] = newCell()
		}
	}
	return &Grid{
		Width:    width,
		Height:   height,
		cells:    cells,
		location: make(map[ProfileLink]Coord),
	}
}

func (g *Grid) inBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// inBorder reports whether c is in the reserved, never-populated border.
func (g *Grid) inBorder(c Coord) bool {
	return c.X == 0 || c.X == g.Width-1 || c.Y == 0 || c.Y == g.Height-1
}

// Insert places a profile at key. If key is in the border, Insert panics
// — callers must clamp coordinates to the interior before calling
// (pkg/geoindex/coords.go does this as part of lat/lon → cell mapping).
func (g *Grid) Insert(link ProfileLink, key Coord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.insertLocked(link, key)
}

func (g *Grid) insertLocked(link ProfileLink, key Coord) {
	if !g.inBounds(key) || g.inBorder(key) {
		panic("geoindex: insert key must be within the non-border interior")
	}
	c := g.cells[key.X][key.Y]
	wasEmpty := c.empty()
	c.profiles[link] = struct{}{}
	g.location[link] = key
	if wasEmpty {
		g.onNonEmpty(key)
	}
}

// Remove takes a profile out of the grid. It is a no-op if link is not
// currently present at key.
func (g *Grid) Remove(link ProfileLink, key Coord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(link, key)
}

func (g *Grid) removeLocked(link ProfileLink, key Coord) {
	c := g.cells[key.X][key.Y]
	if _, ok := c.profiles[link]; !ok {
		return
	}
	delete(c.profiles, link)
	delete(g.location, link)
	if c.empty() {
		g.onEmpty(key)
	}
}

// Move relocates a profile atomically with respect to readers: the
// whole remove+insert happens under the grid's single write lock, so a
// concurrent Query never observes the profile absent from both cells.
func (g *Grid) Move(link ProfileLink, from, to Coord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(link, from)
	g.insertLocked(link, to)
}

// Location returns the cell a profile currently occupies.
func (g *Grid) Location(link ProfileLink) (Coord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.location[link]
	return c, ok
}

// onNonEmpty maintains skip pointers after (x,y) transitioned
// empty→non-empty: walk outward from (x,y) along each axis; every empty
// cell encountered before the next non-empty cell (or the border) had
// its pointer toward (x,y)'s side skipping past (x,y) and must now point
// directly at it.
func (g *Grid) onNonEmpty(at Coord) {
	for _, dir := range allDirections {
		dx, dy := dir.opposite().step() // walk away from at, toward dir.opposite()
		cur := Coord{X: at.X + dx, Y: at.Y + dy}
		for g.inBounds(cur) && g.cells[cur.X][cur.Y].empty() && !g.inBorder(cur) {
			target := at
			g.cells[cur.X][cur.Y].skip[dir] = &target
			cur = Coord{X: cur.X + dx, Y: cur.Y + dy}
		}
	}
}

// onEmpty maintains skip pointers after (x,y) transitioned
// non-empty→empty: recompute (x,y)'s own four pointers by adopting the
// immediate neighbor's value in each direction (O(1), correct because
// the neighbor's pointer already reflects the nearest non-empty cell
// beyond it), then propagate that new value to every empty cell that
// had been pointing at (x,y).
func (g *Grid) onEmpty(at Coord) {
	c := g.cells[at.X][at.Y]
	for _, dir := range allDirections {
		dx, dy := dir.step()
		neighbor := Coord{X: at.X + dx, Y: at.Y + dy}
		var onward *Coord
		if g.inBounds(neighbor) && !g.inBorder(neighbor) {
			nc := g.cells[neighbor.X][neighbor.Y]
			if !nc.empty() {
				v := neighbor
				onward = &v
			} else {
				onward = nc.skip[dir]
			}
		}
		c.skip[dir] = onward

		// Propagate to cells on the opposite side that were skipping
		// through (x,y) in this same direction.
		odx, ody := dir.opposite().step()
		cur := Coord{X: at.X + odx, Y: at.Y + ody}
		for g.inBounds(cur) && g.cells[cur.X][cur.Y].empty() && !g.inBorder(cur) {
			g.cells[cur.X][cur.Y].skip[dir] = onward
			cur = Coord{X: cur.X + odx, Y: cur.Y + ody}
		}
	}
}

// Profiles returns a snapshot of the profiles occupying a single cell.
// Iteration order is map order, which Go does not guarantee is
// insertion order; spec.md §4.F only requires a cell-local deterministic
// order within one query call, which callers get by sorting this slice
// each time they visit the cell (see pkg/iterator).
func (g *Grid) Profiles(at Coord) []ProfileLink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := g.cells[at.X][at.Y]
	out := make([]ProfileLink, 0, len(c.profiles))
	for p := range c.profiles {
		out = append(out, p)
	}
	return out
}

// NextNonEmpty follows the skip pointer of the cell at `from` in
// direction dir. It returns ok=false if `from` is itself non-empty (skip
// pointers are only meaningful for empty cells) or if no non-empty cell
// exists in that direction within bounds.
func (g *Grid) NextNonEmpty(from Coord, dir Direction) (Coord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := g.cells[from.X][from.Y]
	if !c.empty() {
		return Coord{}, false
	}
	p := c.skip[dir]
	if p == nil {
		return Coord{}, false
	}
	return *p, true
}

// IsEmpty reports whether the cell at c currently holds no profiles.
func (g *Grid) IsEmpty(c Coord) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[c.X][c.Y].empty()
}
