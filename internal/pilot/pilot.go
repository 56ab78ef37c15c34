// Package pilot is a simple autonomous snake driver: greedy pellet
// seeking with a forward hazard probe. It works purely off wire-level
// state frames, so the same brain runs behind a websocket client and
// behind the in-process fill seats.
package pilot

import (
	"math"
	"math/rand"

	"snakepit.gg/internal/protocol"
)

type Pilot struct {
	arena protocol.ArenaParams
	rng   *rand.Rand

	lastAngle float64
}

func New(arena protocol.ArenaParams, seed int64) *Pilot {
	return &Pilot{arena: arena, rng: rand.New(rand.NewSource(seed))}
}

// Decide picks the next absolute heading from a state frame. The second
// return is false when the frame gives nothing to act on (no own snake,
// dead, or no pellets in view).
func (p *Pilot) Decide(st *protocol.StateMsg) (float64, bool) {
	if st == nil || st.You == "" {
		return 0, false
	}
	var you *protocol.SnakeWire
	for i := range st.Snakes {
		if st.Snakes[i].ID == st.You {
			you = &st.Snakes[i]
			break
		}
	}
	if you == nil || !you.Alive || len(you.Segments) == 0 {
		return 0, false
	}
	head := you.Segments[0]
	p.lastAngle = you.AngleDeg

	target, found := p.nearestPellet(head, st.Pellets)
	desired := you.AngleDeg
	if found {
		desired = p.headingTo(head, target)
	} else {
		// nothing to chase: wander with a small jitter
		desired += p.rng.Float64()*30 - 15
	}

	// probe ahead of the head at each candidate heading, most direct
	// first, and take the first one that is not blocked by a body
	for _, off := range []float64{0, 30, -30, 60, -60, 90, -90, 120, -120, 150, 180} {
		angle := normalize(desired + off)
		if !p.blocked(head, angle, st, st.You) {
			return angle, true
		}
	}
	return normalize(desired + 180), true
}

func (p *Pilot) nearestPellet(head [2]float64, pellets []protocol.PelletWire) ([2]float64, bool) {
	best := math.MaxFloat64
	var target [2]float64
	for _, pl := range pellets {
		d := p.torusDist2(head, pl.Pos)
		if d < best {
			best = d
			target = pl.Pos
		}
	}
	return target, best < math.MaxFloat64
}

// blocked probes a short ray from the head and reports whether any
// snake body lies close to it. Own segments near the head are skipped;
// a snake always trails its own neck.
func (p *Pilot) blocked(head [2]float64, angleDeg float64, st *protocol.StateMsg, selfID string) bool {
	rad := angleDeg * math.Pi / 180
	lookahead := p.arena.BodyRadius * 10
	if lookahead <= 0 {
		lookahead = 80
	}
	clearance := p.arena.HeadRadius + p.arena.BodyRadius + 4
	for _, step := range []float64{0.5, 1.0} {
		probe := [2]float64{
			wrapCoord(head[0]+math.Cos(rad)*lookahead*step, p.arena.Width),
			wrapCoord(head[1]+math.Sin(rad)*lookahead*step, p.arena.Height),
		}
		for i := range st.Snakes {
			sn := &st.Snakes[i]
			if !sn.Alive {
				continue
			}
			skip := 0
			if sn.ID == selfID {
				skip = 6
			}
			for j, seg := range sn.Segments {
				if j < skip {
					continue
				}
				if p.torusDist2(probe, seg) < clearance*clearance {
					return true
				}
			}
		}
	}
	return false
}

func (p *Pilot) headingTo(from, to [2]float64) float64 {
	dx := wrapDelta(to[0]-from[0], p.arena.Width)
	dy := wrapDelta(to[1]-from[1], p.arena.Height)
	return normalize(math.Atan2(dy, dx) * 180 / math.Pi)
}

func (p *Pilot) torusDist2(a, b [2]float64) float64 {
	dx := wrapDelta(b[0]-a[0], p.arena.Width)
	dy := wrapDelta(b[1]-a[1], p.arena.Height)
	return dx*dx + dy*dy
}

// wrapDelta folds a coordinate difference onto the shortest arc of a
// wrapped axis of the given span.
func wrapDelta(d, span float64) float64 {
	if span <= 0 {
		return d
	}
	d = math.Mod(d, span)
	if d > span/2 {
		d -= span
	} else if d < -span/2 {
		d += span
	}
	return d
}

func wrapCoord(v, span float64) float64 {
	if span <= 0 {
		return v
	}
	v = math.Mod(v, span)
	if v < 0 {
		v += span
	}
	return v
}

func normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
