package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"snakepit.gg/internal/observerproto"
	"snakepit.gg/internal/sim/match"
	"snakepit.gg/internal/sim/multimatch"
)

type Server struct {
	slots *multimatch.Manager
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(slots *multimatch.Manager, logger *log.Logger) *Server {
	return &Server{
		slots: slots,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// BootstrapHandler serves the public slots manifest so spectator
// clients can pick a slot before opening the feed.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Slots:           s.slots.Manifest(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// WSHandler is the read-only spectator feed. The session follows the
// slot, not one match: when the slot recycles into a fresh lobby the
// session re-attaches to the new match automatically.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			s.rejectClose(conn, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			s.rejectClose(conn, "expected SUBSCRIBE")
			return
		}
		normalizeSubscribe(&sub, s.slots.DefaultSlotID())

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		tickOut := make(chan []byte, 16)

		if code := s.attach(sid, tickOut, sub); code != "" {
			b, _ := json.Marshal(observerproto.ErrorMsg{
				Type:            observerproto.TypeError,
				ProtocolVersion: observerproto.Version,
				Code:            code,
			})
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_ = conn.WriteMessage(websocket.TextMessage, b)
			return
		}
		defer s.slots.Unwatch(sub.SlotID, sid)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Re-attach after every slot recycle. The sub value is shared
		// with the reader loop only through this channel.
		retune := make(chan observerproto.SubscribeMsg, 4)
		go s.followSlot(ctx, sid, tickOut, sub, retune)

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-tickOut:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE retunes on the same slot.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != observerproto.TypeSubscribe || upd.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&upd, sub.SlotID)
			upd.SlotID = sub.SlotID // a session never hops slots
			if code := s.attach(sid, tickOut, upd); code == "" {
				select {
				case retune <- upd:
				default:
				}
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) attach(sid string, tickOut chan []byte, sub observerproto.SubscribeMsg) string {
	includePellets := true
	if sub.IncludePellets != nil {
		includePellets = *sub.IncludePellets
	}
	return s.slots.Watch(sub.SlotID, match.ObserverJoinRequest{
		SessionID:      sid,
		TickOut:        tickOut,
		IncludePellets: includePellets,
		MaxRateHz:      sub.MaxRateHz,
	})
}

// followSlot re-subscribes the session whenever the slot moves on to a
// new match.
func (s *Server) followSlot(ctx context.Context, sid string, tickOut chan []byte, sub observerproto.SubscribeMsg, retune chan observerproto.SubscribeMsg) {
	lastMatch := ""
	if st, ok := s.slots.SlotState(sub.SlotID); ok {
		lastMatch = st.MatchID
	}
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-retune:
			sub = upd
		case <-t.C:
			st, ok := s.slots.SlotState(sub.SlotID)
			if !ok || st.MatchID == lastMatch {
				continue
			}
			lastMatch = st.MatchID
			if code := s.attach(sid, tickOut, sub); code != "" {
				s.log.Printf("observer=%s reattach slot=%s: %s", sid, sub.SlotID, code)
			}
		}
	}
}

func (s *Server) rejectClose(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg, defaultSlot string) {
	if strings.TrimSpace(sub.SlotID) == "" {
		sub.SlotID = defaultSlot
	}
	if sub.MaxRateHz < 0 {
		sub.MaxRateHz = 0
	}
	if sub.MaxRateHz > 60 {
		sub.MaxRateHz = 60
	}
}
