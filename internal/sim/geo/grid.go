package geo

import "math"

// BodyRef identifies one body segment returned by a grid query.
type BodyRef struct {
	SnakeID string
	Index   int
	Pos     Vec2
}

// PelletRef identifies one pellet returned by a grid query.
type PelletRef struct {
	ID  string
	Pos Vec2
}

type cellKey struct {
	cx int
	cy int
}

type gridEntry struct {
	snakeID string
	index   int
	pellet  string
	pos     Vec2
}

// Grid is a uniform spatial hash over arena space. It is rebuilt from
// scratch every tick; Reset keeps the per-cell slices allocated so a
// steady-state tick does no map or slice growth.
type Grid struct {
	cellSize float64
	cells    map[cellKey][]gridEntry
}

func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 100
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]gridEntry, 256),
	}
}

func (g *Grid) Reset() {
	for k, entries := range g.cells {
		g.cells[k] = entries[:0]
	}
}

func (g *Grid) keyFor(p Vec2) cellKey {
	return cellKey{
		cx: int(math.Floor(p.X / g.cellSize)),
		cy: int(math.Floor(p.Y / g.cellSize)),
	}
}

func (g *Grid) insert(e gridEntry) {
	k := g.keyFor(e.pos)
	g.cells[k] = append(g.cells[k], e)
}

// InsertSegment indexes one body segment. Heads (index 0) are resolved
// pairwise in the head-to-head pass and must not be inserted.
func (g *Grid) InsertSegment(snakeID string, index int, pos Vec2) {
	g.insert(gridEntry{snakeID: snakeID, index: index, pos: pos})
}

func (g *Grid) InsertPellet(id string, pos Vec2) {
	g.insert(gridEntry{pellet: id, pos: pos})
}

// BodiesWithin appends every body segment whose circle (radius bodyR)
// strictly overlaps the head circle at c (radius headR) into buf and
// returns it. Callers reuse buf across ticks.
func (g *Grid) BodiesWithin(buf []BodyRef, c Vec2, headR, bodyR float64) []BodyRef {
	g.scan(c, headR+bodyR, func(e gridEntry) {
		if e.pellet != "" {
			return
		}
		if CirclesCollide(c, headR, e.pos, bodyR) {
			buf = append(buf, BodyRef{SnakeID: e.snakeID, Index: e.index, Pos: e.pos})
		}
	})
	return buf
}

// PelletsWithin appends every pellet strictly within eating reach of the
// head circle at c into buf and returns it.
func (g *Grid) PelletsWithin(buf []PelletRef, c Vec2, headR, pelletR float64) []PelletRef {
	g.scan(c, headR+pelletR, func(e gridEntry) {
		if e.pellet == "" {
			return
		}
		if CirclesCollide(c, headR, e.pos, pelletR) {
			buf = append(buf, PelletRef{ID: e.pellet, Pos: e.pos})
		}
	})
	return buf
}

func (g *Grid) scan(c Vec2, reach float64, fn func(gridEntry)) {
	minCX := int(math.Floor((c.X - reach) / g.cellSize))
	maxCX := int(math.Floor((c.X + reach) / g.cellSize))
	minCY := int(math.Floor((c.Y - reach) / g.cellSize))
	maxCY := int(math.Floor((c.Y + reach) / g.cellSize))
	for cx := minCX; cx <= maxCX; cx++ {
		for cy := minCY; cy <= maxCY; cy++ {
			for _, e := range g.cells[cellKey{cx, cy}] {
				fn(e)
			}
		}
	}
}
