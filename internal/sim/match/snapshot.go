package match

import "time"

// Snapshot is the published read model: rebuilt by the loop after every
// tick (and after lobby changes), stored behind an atomic, and safe to
// hand to any goroutine. Everything in it is a copy.
type Snapshot struct {
	MatchID     string
	SlotID      string
	Phase       Phase
	Tick        uint64
	Capacity    int
	Seated      int
	Alive       int
	PelletCount int
	TakenAt     time.Time
	RemainingMs int64

	Snakes  []SnakeView
	Pellets []PelletView
}

type SnakeView struct {
	ID       string
	Name     string
	Color    string
	SkinID   string
	JoinSeq  int
	AngleDeg float64
	Score    int
	Alive    bool
	KilledBy string
	Segments [][2]float64
}

type PelletView struct {
	ID    string
	X     float64
	Y     float64
	Value int
}

// PlayerView finds one entrant in a snapshot; nil if absent.
func (s *Snapshot) PlayerView(agentID string) *SnakeView {
	if s == nil {
		return nil
	}
	for i := range s.Snakes {
		if s.Snakes[i].ID == agentID {
			return &s.Snakes[i]
		}
	}
	return nil
}

func (m *Match) buildSnapshot(tick uint64, now time.Time) *Snapshot {
	snap := &Snapshot{
		MatchID:     m.cfg.ID,
		SlotID:      m.cfg.SlotID,
		Phase:       m.phase,
		Tick:        tick,
		Capacity:    m.cfg.Capacity,
		Seated:      len(m.order),
		PelletCount: len(m.pellets),
		TakenAt:     now,
		Snakes:      make([]SnakeView, 0, len(m.order)),
		Pellets:     make([]PelletView, 0, len(m.pellets)),
	}
	if m.phase == PhaseActive {
		if rem := m.endAt.Sub(now); rem > 0 {
			snap.RemainingMs = rem.Milliseconds()
		}
	}
	for _, id := range m.order {
		s := m.snakes[id]
		segs := make([][2]float64, len(s.Segments))
		for i, p := range s.Segments {
			segs[i] = [2]float64{p.X, p.Y}
		}
		if s.Alive {
			snap.Alive++
		}
		snap.Snakes = append(snap.Snakes, SnakeView{
			ID:       s.ID,
			Name:     s.Name,
			Color:    s.Color,
			SkinID:   s.SkinID,
			JoinSeq:  s.JoinSeq,
			AngleDeg: s.AngleDeg,
			Score:    s.Score,
			Alive:    s.Alive,
			KilledBy: s.KilledBy,
			Segments: segs,
		})
	}
	for _, p := range m.pellets {
		snap.Pellets = append(snap.Pellets, PelletView{ID: p.ID, X: p.Pos.X, Y: p.Pos.Y, Value: p.Value})
	}
	return snap
}

func (m *Match) publishSnapshot(tick uint64, now time.Time) *Snapshot {
	snap := m.buildSnapshot(tick, now)
	m.published.Store(snap)
	return snap
}

// Snapshot returns the most recently published state. Never nil after
// New. The result is shared and must be treated as read-only.
func (m *Match) Snapshot() *Snapshot {
	snap, _ := m.published.Load().(*Snapshot)
	return snap
}

// PlayerState is the per-player read: the entrant's view plus the
// match phase and tick, at most one tick stale.
func (m *Match) PlayerState(agentID string) (*SnakeView, Phase, uint64) {
	snap := m.Snapshot()
	if snap == nil {
		return nil, PhaseLobby, 0
	}
	return snap.PlayerView(agentID), snap.Phase, snap.Tick
}
