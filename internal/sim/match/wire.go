package match

import (
	"encoding/json"
	"sort"

	"snakepit.gg/internal/observerproto"
	"snakepit.gg/internal/protocol"
)

// ArenaParams describes the board for WELCOME messages.
func (m *Match) ArenaParams() protocol.ArenaParams {
	return protocol.ArenaParams{
		Width:        m.cfg.ArenaWidth,
		Height:       m.cfg.ArenaHeight,
		TickRateHz:   m.cfg.TickRateHz,
		WallMargin:   m.cfg.WallMargin,
		HeadRadius:   m.cfg.HeadRadius,
		BodyRadius:   m.cfg.BodyRadius,
		PelletRadius: m.cfg.PelletRadius,
	}
}

func snakeWires(snap *Snapshot) []protocol.SnakeWire {
	out := make([]protocol.SnakeWire, 0, len(snap.Snakes))
	for _, s := range snap.Snakes {
		out = append(out, protocol.SnakeWire{
			ID:       s.ID,
			Name:     s.Name,
			Color:    s.Color,
			SkinID:   s.SkinID,
			AngleDeg: s.AngleDeg,
			Score:    s.Score,
			Alive:    s.Alive,
			KilledBy: s.KilledBy,
			Segments: s.Segments,
		})
	}
	return out
}

func pelletWires(snap *Snapshot) []protocol.PelletWire {
	out := make([]protocol.PelletWire, 0, len(snap.Pellets))
	for _, p := range snap.Pellets {
		out = append(out, protocol.PelletWire{ID: p.ID, Pos: [2]float64{p.X, p.Y}, Value: p.Value})
	}
	return out
}

// broadcastState pushes the per-tick STATE to every seated player.
// The frame differs per player only in the you field.
func (m *Match) broadcastState(snap *Snapshot) {
	if len(m.order) == 0 {
		return
	}
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		MatchID:         snap.MatchID,
		Phase:           string(snap.Phase),
		Tick:            snap.Tick,
		RemainingMs:     snap.RemainingMs,
		Snakes:          snakeWires(snap),
		Pellets:         pelletWires(snap),
	}
	for _, id := range m.order {
		s := m.snakes[id]
		if s.out == nil {
			continue
		}
		msg.You = id
		b, err := json.Marshal(msg)
		if err != nil {
			m.log.Printf("match=%s marshal state: %v", m.cfg.ID, err)
			return
		}
		m.sendLatest(s.out, b)
	}
}

func (m *Match) observerFrame(snap *Snapshot, includePellets bool) []byte {
	msg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		SlotID:          snap.SlotID,
		MatchID:         snap.MatchID,
		Phase:           string(snap.Phase),
		Tick:            snap.Tick,
		RemainingMs:     snap.RemainingMs,
		Snakes:          make([]observerproto.SnakeState, 0, len(snap.Snakes)),
		Board:           liveBoard(snap),
	}
	for _, s := range snap.Snakes {
		msg.Snakes = append(msg.Snakes, observerproto.SnakeState{
			ID:       s.ID,
			Name:     s.Name,
			Color:    s.Color,
			SkinID:   s.SkinID,
			AngleDeg: s.AngleDeg,
			Score:    s.Score,
			Alive:    s.Alive,
			KilledBy: s.KilledBy,
			Segments: s.Segments,
		})
	}
	if includePellets {
		msg.Pellets = make([]observerproto.Pellet, 0, len(snap.Pellets))
		for _, p := range snap.Pellets {
			msg.Pellets = append(msg.Pellets, observerproto.Pellet{ID: p.ID, Pos: [2]float64{p.X, p.Y}, Value: p.Value})
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		m.log.Printf("match=%s marshal tick frame: %v", m.cfg.ID, err)
		return nil
	}
	return b
}

// liveBoard ranks alive snakes by score for the spectator overlay.
func liveBoard(snap *Snapshot) []observerproto.BoardRow {
	rows := make([]observerproto.BoardRow, 0, len(snap.Snakes))
	for _, s := range snap.Snakes {
		if !s.Alive {
			continue
		}
		rows = append(rows, observerproto.BoardRow{ID: s.ID, Name: s.Name, Score: s.Score})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if len(rows) > 10 {
		rows = rows[:10]
	}
	return rows
}

// broadcastResult delivers the terminal RESULT to players and
// observers. Rate gating does not apply to the final frame.
func (m *Match) broadcastResult(sum Summary, ranking []RankedResult) {
	pr := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		MatchID:         sum.MatchID,
		SlotID:          sum.SlotID,
		Reason:          string(sum.Reason),
		WinnerID:        sum.WinnerID,
		DurationTicks:   sum.DurationTicks,
		Ranking:         make([]protocol.RankWire, 0, len(ranking)),
	}
	for _, r := range ranking {
		pr.Ranking = append(pr.Ranking, protocol.RankWire{
			Rank:              r.Rank,
			AgentID:           r.AgentID,
			Name:              r.Name,
			Score:             r.Score,
			SurvivalTicks:     r.SurvivalTicks,
			DisplaySurvivalMs: r.DisplaySurvivalMs,
			Alive:             r.Alive,
			KilledBy:          r.KilledBy,
		})
	}
	if pb, err := json.Marshal(pr); err == nil {
		for _, id := range m.order {
			if s := m.snakes[id]; s.out != nil {
				m.sendLatest(s.out, pb)
			}
		}
	}

	or := observerproto.ResultMsg{
		Type:            observerproto.TypeResult,
		ProtocolVersion: observerproto.Version,
		SlotID:          sum.SlotID,
		MatchID:         sum.MatchID,
		Reason:          string(sum.Reason),
		WinnerID:        sum.WinnerID,
		DurationTicks:   sum.DurationTicks,
	}
	for _, r := range ranking {
		or.Ranking = append(or.Ranking, observerproto.RankedRow{
			Rank:              r.Rank,
			AgentID:           r.AgentID,
			Name:              r.Name,
			Score:             r.Score,
			SurvivalTicks:     r.SurvivalTicks,
			DisplaySurvivalMs: r.DisplaySurvivalMs,
		})
	}
	if ob, err := json.Marshal(or); err == nil {
		for _, o := range m.observers {
			m.sendLatest(o.out, ob)
		}
	}
}

func (m *Match) sendAck(s *Snake, ref string, tick uint64, code string, newAngle *float64) {
	if s == nil || s.out == nil {
		return
	}
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		Tick:            tick,
		OK:              code == "",
		Code:            code,
		NewAngleDeg:     newAngle,
	}
	if b, err := json.Marshal(ack); err == nil {
		m.sendLatest(s.out, b)
	}
}
