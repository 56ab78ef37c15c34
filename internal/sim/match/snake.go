package match

import (
	"math/rand"

	"snakepit.gg/internal/sim/geo"
)

// palette cycles per match; concurrent matches never share a counter.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
	"#bcf60c", "#fabebe", "#008080", "#e6beff",
}

// Snake is one entrant's authoritative body. Segments[0] is the head;
// it slides sub-tick between segment commits. All fields are owned by
// the match loop goroutine.
type Snake struct {
	ID         string
	Name       string
	SkinID     string
	Credential string
	Color      string
	JoinSeq    int

	Segments []geo.Vec2
	AngleDeg float64
	Speed    float64
	Score    int

	Alive     bool
	KilledBy  string
	DeathTick uint64

	out chan []byte
}

func (s *Snake) Head() geo.Vec2 { return s.Segments[0] }

// Kill is irreversible: it freezes the snake where it died.
func (s *Snake) Kill(killer string, tick uint64) {
	if !s.Alive {
		return
	}
	s.Alive = false
	s.Speed = 0
	s.KilledBy = killer
	s.DeathTick = tick
}

// Grow appends amount duplicates of the tail segment. The duplicates
// fan out as the snake keeps moving.
func (s *Snake) Grow(amount int) {
	if amount <= 0 || len(s.Segments) == 0 {
		return
	}
	tail := s.Segments[len(s.Segments)-1]
	for i := 0; i < amount; i++ {
		s.Segments = append(s.Segments, tail)
	}
}

// Steer applies an absolute heading or a signed delta, normalized into
// [0,360), and returns the new heading.
func (s *Snake) Steer(angleDeg, deltaDeg *float64) float64 {
	switch {
	case angleDeg != nil:
		s.AngleDeg = geo.NormalizeAngle(*angleDeg)
	case deltaDeg != nil:
		s.AngleDeg = geo.NormalizeAngle(s.AngleDeg + *deltaDeg)
	}
	return s.AngleDeg
}

// Advance moves the head by one tick of travel and wraps it onto the
// torus. A new head segment is committed (tail dropped, count kept)
// only once the candidate is far enough from the current second
// segment; otherwise the head slides in place so sub-tick motion stays
// smooth.
func (s *Snake) Advance(cfg *Config) {
	if !s.Alive || len(s.Segments) == 0 {
		return
	}
	candidate := s.Head().Add(geo.Heading(s.AngleDeg).Scale(s.Speed))
	candidate = geo.Wrap(candidate, cfg.ArenaWidth, cfg.ArenaHeight)

	if len(s.Segments) >= 2 &&
		geo.Dist(candidate, s.Segments[1]) >= cfg.requiredSpacing(len(s.Segments)) {
		copy(s.Segments[1:], s.Segments[:len(s.Segments)-1])
		s.Segments[0] = candidate
		return
	}
	s.Segments[0] = candidate
}

// layoutSegments places the initial chain behind the head along the
// spawn heading. Gaps taper linearly from the full spacing at the head
// down to spacing*taper at the tail.
func layoutSegments(cfg *Config, head geo.Vec2, angleDeg float64) []geo.Vec2 {
	n := cfg.InitialSegments
	if n < 1 {
		n = 1
	}
	segs := make([]geo.Vec2, 0, n+8)
	segs = append(segs, head)

	back := geo.Heading(angleDeg).Scale(-1)
	headGap := cfg.SegmentSpacing
	tailGap := cfg.SegmentSpacing * cfg.SpawnTaper
	pos := head
	for i := 1; i < n; i++ {
		frac := 0.0
		if n > 2 {
			frac = float64(i-1) / float64(n-2)
		}
		gap := headGap + (tailGap-headGap)*frac
		pos = geo.Wrap(pos.Add(back.Scale(gap)), cfg.ArenaWidth, cfg.ArenaHeight)
		segs = append(segs, pos)
	}
	return segs
}

// spawnPoint draws a spawn position inside the wall margin.
func spawnPoint(cfg *Config, rng *rand.Rand) geo.Vec2 {
	w := cfg.ArenaWidth - 2*cfg.WallMargin
	h := cfg.ArenaHeight - 2*cfg.WallMargin
	return geo.Vec2{
		X: cfg.WallMargin + rng.Float64()*w,
		Y: cfg.WallMargin + rng.Float64()*h,
	}
}
