package pilot

import (
	"math"
	"testing"

	"snakepit.gg/internal/protocol"
)

func testArena() protocol.ArenaParams {
	return protocol.ArenaParams{
		Width: 1000, Height: 1000,
		HeadRadius: 10, BodyRadius: 8, PelletRadius: 5,
	}
}

func frame(you protocol.SnakeWire, pellets []protocol.PelletWire, others ...protocol.SnakeWire) *protocol.StateMsg {
	return &protocol.StateMsg{
		Type:    protocol.TypeState,
		You:     you.ID,
		Snakes:  append([]protocol.SnakeWire{you}, others...),
		Pellets: pellets,
	}
}

func TestDecideSeeksNearestPellet(t *testing.T) {
	p := New(testArena(), 1)
	you := protocol.SnakeWire{ID: "a", Alive: true, Segments: [][2]float64{{500, 500}}}
	st := frame(you, []protocol.PelletWire{
		{ID: "far", Pos: [2]float64{900, 900}},
		{ID: "near", Pos: [2]float64{600, 500}},
	})
	angle, ok := p.Decide(st)
	if !ok {
		t.Fatal("expected a decision")
	}
	// nearest pellet is due east
	if math.Abs(angle) > 1 && math.Abs(angle-360) > 1 {
		t.Fatalf("angle = %.1f, want ~0", angle)
	}
}

func TestDecideCrossesWrapSeam(t *testing.T) {
	p := New(testArena(), 1)
	you := protocol.SnakeWire{ID: "a", Alive: true, Segments: [][2]float64{{990, 500}}}
	st := frame(you, []protocol.PelletWire{{ID: "p", Pos: [2]float64{10, 500}}})
	angle, ok := p.Decide(st)
	if !ok {
		t.Fatal("expected a decision")
	}
	// pellet is 20 units east through the seam, not 980 west
	if math.Abs(angle) > 1 && math.Abs(angle-360) > 1 {
		t.Fatalf("angle = %.1f, want ~0 (through seam)", angle)
	}
}

func TestDecideAvoidsBlockingBody(t *testing.T) {
	p := New(testArena(), 1)
	you := protocol.SnakeWire{ID: "a", Alive: true, Segments: [][2]float64{{500, 500}}}
	wall := protocol.SnakeWire{ID: "b", Alive: true}
	// a vertical wall of segments directly east of the head
	for y := 440.0; y <= 560; y += 8 {
		wall.Segments = append(wall.Segments, [2]float64{550, y})
	}
	st := frame(you, []protocol.PelletWire{{ID: "p", Pos: [2]float64{700, 500}}}, wall)
	angle, ok := p.Decide(st)
	if !ok {
		t.Fatal("expected a decision")
	}
	if math.Abs(wrapDelta(angle-0, 360)) < 25 {
		t.Fatalf("angle = %.1f, should veer away from the wall", angle)
	}
}

func TestDecideDeadOrMissing(t *testing.T) {
	p := New(testArena(), 1)
	dead := protocol.SnakeWire{ID: "a", Alive: false, Segments: [][2]float64{{1, 1}}}
	if _, ok := p.Decide(frame(dead, nil)); ok {
		t.Fatal("dead snake should yield no decision")
	}
	if _, ok := p.Decide(&protocol.StateMsg{You: "ghost"}); ok {
		t.Fatal("missing snake should yield no decision")
	}
	if _, ok := p.Decide(nil); ok {
		t.Fatal("nil frame should yield no decision")
	}
}

func TestWrapDelta(t *testing.T) {
	cases := []struct{ d, span, want float64 }{
		{10, 100, 10},
		{60, 100, -40},
		{-60, 100, 40},
		{0, 100, 0},
		{50, 0, 50},
	}
	for _, c := range cases {
		if got := wrapDelta(c.d, c.span); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("wrapDelta(%v,%v) = %v, want %v", c.d, c.span, got, c.want)
		}
	}
}
