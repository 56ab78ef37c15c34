package match

import (
	"math/rand"

	"snakepit.gg/internal/sim/geo"
)

// Pellet is one food item on the floor.
type Pellet struct {
	ID    string
	Pos   geo.Vec2
	Value int
}

// DropPellets converts a dead snake's accumulated value into pellets.
// It is a pure function of the snake's final state (plus the match RNG
// for placement): no timers, no live references.
//
// Positive score drops max(5, min(score/pelletValue, segments*2))
// pellets at random body segments with jitter. Zero or negative score
// still drops one pellet per third segment so no death is silent.
func DropPellets(sn *Snake, cfg *Config, rng *rand.Rand, alloc func() string) []Pellet {
	if len(sn.Segments) == 0 {
		return nil
	}

	jitter := func(p geo.Vec2) geo.Vec2 {
		if cfg.DropJitter > 0 {
			p.X += (rng.Float64()*2 - 1) * cfg.DropJitter
			p.Y += (rng.Float64()*2 - 1) * cfg.DropJitter
		}
		return geo.Wrap(p, cfg.ArenaWidth, cfg.ArenaHeight)
	}

	if sn.Score <= 0 {
		var out []Pellet
		for i := 0; i < len(sn.Segments); i += 3 {
			out = append(out, Pellet{
				ID:    alloc(),
				Pos:   jitter(sn.Segments[i]),
				Value: cfg.PelletValue,
			})
		}
		return out
	}

	count := sn.Score / cfg.PelletValue
	if lim := len(sn.Segments) * 2; count > lim {
		count = lim
	}
	if count < 5 {
		count = 5
	}
	out := make([]Pellet, 0, count)
	for i := 0; i < count; i++ {
		seg := sn.Segments[rng.Intn(len(sn.Segments))]
		out = append(out, Pellet{
			ID:    alloc(),
			Pos:   jitter(seg),
			Value: cfg.PelletValue,
		})
	}
	return out
}

func (m *Match) spawnPellet() {
	p := Pellet{
		ID:    m.allocPelletID(),
		Pos:   spawnPoint(&m.cfg, m.rng),
		Value: m.cfg.PelletValue,
	}
	m.pellets[p.ID] = &p
}

func (m *Match) spawnInitialPellets() {
	for i := 0; i < m.cfg.InitialPellets; i++ {
		m.spawnPellet()
	}
}

// maintainPellets tops the floor back up to the configured count after
// consumption. Death drops can push the total above the target; those
// are left alone.
func (m *Match) maintainPellets() {
	for len(m.pellets) < m.cfg.InitialPellets {
		m.spawnPellet()
	}
}
