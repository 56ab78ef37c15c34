package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snakepit.gg/internal/pilot"
	"snakepit.gg/internal/protocol"
)

// A local load / demo client: joins a slot, pilots a snake with the
// same steering logic the server's fill agents use, and prints the
// final ranking.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		slot  = flag.String("slot", "", "slot id (server default when empty)")
		name  = flag.String("name", "bot", "agent name")
		count = flag.Int("count", 1, "number of bots to run")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "pilot seed")
		every = flag.Int("steer_every", 4, "steer every Nth state frame")
	)
	flag.Parse()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		botName := *name
		if *count > 1 {
			botName = fmt.Sprintf("%s-%d", *name, i+1)
		}
		wg.Add(1)
		go func(n string, s int64) {
			defer wg.Done()
			runBot(*url, *slot, n, s, *every, stop)
		}(botName, *seed+int64(i))
	}
	wg.Wait()
}

func runBot(url, slot, name string, seed int64, steerEvery int, stop <-chan os.Signal) {
	logger := log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lmicroseconds)
	if slot != "" {
		url = url + "?slot=" + slot
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Printf("dial: %v", err)
		return
	}
	defer conn.Close()

	join := protocol.JoinMsg{
		Type:            protocol.TypeJoin,
		ProtocolVersion: protocol.Version,
		Name:            name,
		Credential:      fmt.Sprintf("bot:%s:%d", name, seed),
	}
	if err := conn.WriteJSON(join); err != nil {
		logger.Printf("send JOIN: %v", err)
		return
	}

	var (
		p      *pilot.Pilot
		frames int
	)
	for {
		select {
		case <-stop:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			p = pilot.New(w.Arena, seed)
			logger.Printf("WELCOME agent_id=%s match=%s slot=%s arena=%.0fx%.0f",
				w.AgentID, w.MatchID, w.SlotID, w.Arena.Width, w.Arena.Height)

		case protocol.TypeState:
			frames++
			if p == nil || frames%steerEvery != 0 {
				continue
			}
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			angle, ok := p.Decide(&st)
			if !ok {
				continue
			}
			steer := protocol.SteerMsg{
				Type:            protocol.TypeSteer,
				ProtocolVersion: protocol.Version,
				Ref:             fmt.Sprintf("s%d", st.Tick),
				AngleDeg:        &angle,
			}
			_ = conn.WriteJSON(steer)

		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			logger.Printf("RESULT match=%s reason=%s winner=%s", res.MatchID, res.Reason, res.WinnerID)
			for _, row := range res.Ranking {
				logger.Printf("  #%d %-16s score=%d survived=%dms", row.Rank, row.Name, row.Score, row.DisplaySurvivalMs)
			}
			return

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR code=%s msg=%s", e.Code, e.Message)
			if p == nil {
				// Rejected before WELCOME; nothing to pilot.
				return
			}
		}
	}
}
