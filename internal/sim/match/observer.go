package match

import "snakepit.gg/internal/protocol"

// ObserverJoinRequest attaches one spectator session to the match feed.
// TickOut receives marshaled frames; when it is full the oldest frame
// is dropped, never the tick. Any number of sessions may be attached.
type ObserverJoinRequest struct {
	SessionID      string
	TickOut        chan []byte
	IncludePellets bool
	MaxRateHz      int
	Resp           chan ObserverJoinResponse
}

type ObserverJoinResponse struct {
	OK   bool
	Code string
}

type observerSession struct {
	id             string
	out            chan []byte
	includePellets bool
	every          uint64
}

func (m *Match) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		if req.Resp != nil {
			req.Resp <- ObserverJoinResponse{Code: protocol.ErrProtoBadRequest}
		}
		return
	}
	every := uint64(1)
	if req.MaxRateHz > 0 && req.MaxRateHz < m.cfg.TickRateHz {
		every = uint64(m.cfg.TickRateHz / req.MaxRateHz)
		if every < 1 {
			every = 1
		}
	}
	m.observers[req.SessionID] = &observerSession{
		id:             req.SessionID,
		out:            req.TickOut,
		includePellets: req.IncludePellets,
		every:          every,
	}
	if req.Resp != nil {
		req.Resp <- ObserverJoinResponse{OK: true}
	}
	// Catch the new session up immediately.
	if snap := m.Snapshot(); snap != nil {
		if frame := m.observerFrame(snap, req.IncludePellets); frame != nil {
			m.sendLatest(req.TickOut, frame)
		}
	}
}

func (m *Match) removeObserver(sessionID string) {
	delete(m.observers, sessionID)
}

// broadcastObservers fans one tick out to every attached session,
// honoring each session's rate divisor.
func (m *Match) broadcastObservers(tick uint64, snap *Snapshot) {
	if len(m.observers) == 0 {
		return
	}
	var full, lean []byte
	for _, o := range m.observers {
		if tick%o.every != 0 {
			continue
		}
		if o.includePellets {
			if full == nil {
				full = m.observerFrame(snap, true)
			}
			m.sendLatest(o.out, full)
		} else {
			if lean == nil {
				lean = m.observerFrame(snap, false)
			}
			m.sendLatest(o.out, lean)
		}
	}
}

// sendLatest delivers b without ever blocking the loop: when the
// channel is full the oldest frame is discarded to make room.
func (m *Match) sendLatest(ch chan []byte, b []byte) {
	for {
		select {
		case ch <- b:
			return
		default:
			select {
			case <-ch:
				m.framesDropped++
			default:
			}
		}
	}
}
