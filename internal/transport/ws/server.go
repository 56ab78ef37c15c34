package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"snakepit.gg/internal/protocol"
	"snakepit.gg/internal/sim/match"
	"snakepit.gg/internal/sim/multimatch"
)

type Server struct {
	slots *multimatch.Manager
	log   *log.Logger

	upgrader websocket.Upgrader
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

// Handler is the player endpoint. One connection is one seat: JOIN
// handshake, then STEER upstream and STATE/ACK/RESULT downstream until
// either side hangs up.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		slotID := strings.TrimSpace(r.URL.Query().Get("slot"))
		if slotID == "" {
			slotID = s.slots.DefaultSlotID()
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		seat, out := s.handshake(conn, slotID)
		if seat == nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeSteer {
				continue
			}
			var steer protocol.SteerMsg
			if err := json.Unmarshal(msg, &steer); err != nil {
				continue
			}
			if steer.ProtocolVersion != protocol.Version {
				continue
			}
			code := s.slots.Steer(slotID, match.SteerEnvelope{
				AgentID:  seat.AgentID,
				Ref:      steer.Ref,
				AngleDeg: steer.AngleDeg,
				DeltaDeg: steer.DeltaDeg,
			})
			if code != "" {
				s.pushError(out, code, steer.Ref)
			}
		}

		// Cleanup: free the lobby seat, or retire the snake mid-match.
		s.slots.Leave(slotID, seat.AgentID)
	}
}

// handshake runs the JOIN exchange and seats the connection. A nil seat
// means the connection was already answered and closed.
func (s *Server) handshake(conn *websocket.Conn, slotID string) (*match.Seat, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeJoin {
		s.rejectClose(conn, "expected JOIN")
		return nil, nil
	}
	var join protocol.JoinMsg
	if err := json.Unmarshal(msg, &join); err != nil {
		s.rejectClose(conn, "malformed JOIN")
		return nil, nil
	}
	if join.ProtocolVersion != protocol.Version {
		s.rejectClose(conn, "bad protocol_version")
		return nil, nil
	}
	if strings.TrimSpace(join.Name) == "" {
		join.Name = "snake"
	}
	if join.Credential == "" {
		join.Credential = join.Name
	}

	out := make(chan []byte, 32)
	res, code := s.slots.Join(slotID, join.Name, join.SkinID, join.Credential, out)
	if code != "" {
		_ = writeJSON(conn, protocol.ErrorMsg{
			Type:            protocol.TypeError,
			ProtocolVersion: protocol.Version,
			Code:            code,
		})
		return nil, nil
	}

	seat := res.Seat
	if err := writeJSON(conn, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         seat.AgentID,
		MatchID:         seat.MatchID,
		SlotID:          seat.SlotID,
		Color:           seat.Color,
		Arena:           seat.Arena,
	}); err != nil {
		s.slots.Leave(slotID, seat.AgentID)
		return nil, nil
	}
	return seat, out
}

// pushError queues an ERROR frame behind the seat's normal stream,
// shedding it when the connection is already backed up.
func (s *Server) pushError(out chan []byte, code, ref string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         ref,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) rejectClose(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
