package match

import (
	"fmt"
	"math/rand"
	"testing"

	"snakepit.gg/internal/sim/geo"
)

func fixedAlloc() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("P%d", n)
	}
}

func TestDropPellets_ScoreConvertsCappedBySegments(t *testing.T) {
	cfg := Config{PelletValue: 5}
	cfg.applyDefaults()
	rng := rand.New(rand.NewSource(1))

	sn := &Snake{ID: "A", Score: 1000, Segments: make([]geo.Vec2, 20)}
	for i := range sn.Segments {
		sn.Segments[i] = geo.Vec2{X: float64(100 + i*8), Y: 500}
	}

	alloc := fixedAlloc()
	drops := DropPellets(sn, &cfg, rng, alloc)

	// 1000/5 would be 200 pellets; twice the segment count caps it at 40.
	if got := len(drops); got != 40 {
		t.Fatalf("drop count: %d want 40", got)
	}
	for _, p := range drops {
		if p.Value != cfg.PelletValue {
			t.Fatalf("pellet value: %d want %d", p.Value, cfg.PelletValue)
		}
	}
}

func TestDropPellets_FloorOfFive(t *testing.T) {
	cfg := Config{PelletValue: 5}
	cfg.applyDefaults()
	rng := rand.New(rand.NewSource(1))

	sn := &Snake{ID: "A", Score: 12, Segments: make([]geo.Vec2, 10)}
	alloc := fixedAlloc()
	drops := DropPellets(sn, &cfg, rng, alloc)

	if got := len(drops); got != 5 {
		t.Fatalf("drop count: %d want 5", got)
	}
}

func TestDropPellets_ZeroScoreDropsEveryThirdSegment(t *testing.T) {
	cfg := Config{PelletValue: 5, DropJitter: 0}
	cfg.applyDefaults()
	rng := rand.New(rand.NewSource(1))

	sn := &Snake{ID: "A", Score: 0, Segments: make([]geo.Vec2, 10)}
	for i := range sn.Segments {
		sn.Segments[i] = geo.Vec2{X: float64(100 + i*8), Y: 500}
	}
	alloc := fixedAlloc()
	drops := DropPellets(sn, &cfg, rng, alloc)

	// Segments 0, 3, 6, 9.
	if got := len(drops); got != 4 {
		t.Fatalf("drop count: %d want 4", got)
	}
	for i, p := range drops {
		want := sn.Segments[i*3]
		if p.Pos != want {
			t.Fatalf("drop %d at %+v want %+v", i, p.Pos, want)
		}
	}
}

func TestDropPellets_JitterStaysOnTorus(t *testing.T) {
	cfg := Config{PelletValue: 5, DropJitter: 30}
	cfg.applyDefaults()
	rng := rand.New(rand.NewSource(7))

	// Dying on the seam: every jittered drop must land back in range.
	sn := &Snake{ID: "A", Score: 200, Segments: make([]geo.Vec2, 8)}
	for i := range sn.Segments {
		sn.Segments[i] = geo.Vec2{X: 1995, Y: 2}
	}
	alloc := fixedAlloc()
	drops := DropPellets(sn, &cfg, rng, alloc)

	for _, p := range drops {
		if p.Pos.X < 0 || p.Pos.X >= cfg.ArenaWidth || p.Pos.Y < 0 || p.Pos.Y >= cfg.ArenaHeight {
			t.Fatalf("drop out of range: %+v", p.Pos)
		}
	}
}

func TestMaintainPellets_TopsUpNeverTrims(t *testing.T) {
	cfg := Config{ID: "m-econ", InitialPellets: 50, Seed: 3}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	m.spawnInitialPellets()
	if got := len(m.pellets); got != 50 {
		t.Fatalf("initial pellets: %d want 50", got)
	}

	// Consumption path: below target gets refilled.
	removed := 0
	for id := range m.pellets {
		delete(m.pellets, id)
		removed++
		if removed == 10 {
			break
		}
	}
	m.maintainPellets()
	if got := len(m.pellets); got != 50 {
		t.Fatalf("pellets after refill: %d want 50", got)
	}

	// Death drops can push the floor above target; surplus stays.
	for i := 0; i < 25; i++ {
		m.spawnPellet()
	}
	m.maintainPellets()
	if got := len(m.pellets); got != 75 {
		t.Fatalf("pellets after surplus: %d want 75", got)
	}
}
