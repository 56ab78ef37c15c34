package multimatch

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"snakepit.gg/internal/protocol"
	"snakepit.gg/internal/sim/match"
)

// Pilot decides a fill snake's next heading from a state frame.
type Pilot interface {
	Decide(st *protocol.StateMsg) (float64, bool)
}

// PilotFunc builds a pilot for one fill seat.
type PilotFunc func(arena protocol.ArenaParams, seed int64) Pilot

// steerEveryNFrames throttles fill steering so fill snakes feel like
// slow humans, not per-tick oracles.
const steerEveryNFrames = 4

// fireFill tops a waiting lobby up to the slot's fill target with
// server-driven snakes. It only runs while the slot is still waiting
// for the match to start.
func (mgr *Manager) fireFill(slotID string, gen uint64) {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil || s.gen != gen || (s.phase != SlotLobby && s.phase != SlotCountdown) {
		mgr.mu.Unlock()
		return
	}
	s.fillT = nil
	m := s.m
	spec := s.spec
	mgr.mu.Unlock()

	need := spec.Fill.Target - m.Snapshot().Seated
	for i := 0; i < need; i++ {
		name := fmt.Sprintf("drone-%d", i+1)
		if i < len(spec.Fill.Names) {
			name = spec.Fill.Names[i]
		}
		out := make(chan []byte, 32)
		res, ok := sendJoin(m, match.JoinRequest{
			Name:       name,
			Credential: "fill:" + uuid.NewString(),
			Out:        out,
		})
		if !ok || res.Code != "" {
			continue
		}
		mgr.audit(AuditEntry{SlotID: slotID, MatchID: m.ID(), Kind: "fill_seated", AgentID: res.Seat.AgentID, Detail: name})
		p := mgr.opts.FillPilot(res.Seat.Arena, mgr.opts.Seed+int64(i))

		mgr.wg.Add(1)
		go mgr.runFillAgent(m, res.Seat, out, p)

		mgr.mu.Lock()
		if s.gen == gen {
			mgr.afterJoinLocked(s, res.Seated)
		}
		mgr.mu.Unlock()
	}
}

// runFillAgent drives one fill seat off its frame channel until the
// match ends. It never blocks the loop: steering is fire-and-forget
// with a full-inbox drop.
func (mgr *Manager) runFillAgent(m *match.Match, seat *match.Seat, out chan []byte, p Pilot) {
	defer mgr.wg.Done()
	frames := 0
	for {
		select {
		case <-mgr.ctx.Done():
			return
		case <-m.Done():
			return
		case raw := <-out:
			base, err := protocol.DecodeBase(raw)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeResult:
				return
			case protocol.TypeState:
				frames++
				if frames%steerEveryNFrames != 0 {
					continue
				}
				var st protocol.StateMsg
				if err := json.Unmarshal(raw, &st); err != nil {
					continue
				}
				angle, ok := p.Decide(&st)
				if !ok {
					continue
				}
				env := match.SteerEnvelope{AgentID: seat.AgentID, AngleDeg: &angle}
				select {
				case m.Inbox() <- env:
				default:
				}
			}
		}
	}
}
