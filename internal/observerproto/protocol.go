// Package observerproto defines the read-only spectator feed. It is
// versioned separately from the player protocol so arena clients and
// overlay tooling can evolve on their own cadence.
package observerproto

import "encoding/json"

const Version = "0.2"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
	TypeResult    = "RESULT"
	TypeError     = "ERROR"
)

type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SubscribeMsg opens or retunes a spectator session. MaxRateHz is
// clamped server-side to the arena tick rate; zero means full rate.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SlotID          string `json:"slot_id,omitempty"`
	IncludePellets  *bool  `json:"include_pellets,omitempty"`
	MaxRateHz       int    `json:"max_rate_hz,omitempty"`
}

// TickMsg is one frame of the spectator feed.
type TickMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SlotID          string       `json:"slot_id"`
	MatchID         string       `json:"match_id"`
	Phase           string       `json:"phase"`
	Tick            uint64       `json:"tick"`
	RemainingMs     int64        `json:"remaining_ms,omitempty"`
	Snakes          []SnakeState `json:"snakes"`
	Pellets         []Pellet     `json:"pellets,omitempty"`
	Board           []BoardRow   `json:"board,omitempty"`
}

type SnakeState struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Color    string       `json:"color"`
	SkinID   string       `json:"skin_id,omitempty"`
	AngleDeg float64      `json:"angle_deg"`
	Score    int          `json:"score"`
	Alive    bool         `json:"alive"`
	KilledBy string       `json:"killed_by,omitempty"`
	Segments [][2]float64 `json:"segments"`
}

type Pellet struct {
	ID    string     `json:"id"`
	Pos   [2]float64 `json:"pos"`
	Value int        `json:"value"`
}

// BoardRow is one live-leaderboard line: alive snakes by score.
type BoardRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ResultMsg closes out a match on the feed.
type ResultMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SlotID          string      `json:"slot_id"`
	MatchID         string      `json:"match_id"`
	Reason          string      `json:"reason"`
	WinnerID        string      `json:"winner_id,omitempty"`
	DurationTicks   uint64      `json:"duration_ticks"`
	Ranking         []RankedRow `json:"ranking"`
}

type RankedRow struct {
	Rank              int    `json:"rank"`
	AgentID           string `json:"agent_id"`
	Name              string `json:"name"`
	Score             int    `json:"score"`
	SurvivalTicks     uint64 `json:"survival_ticks"`
	DisplaySurvivalMs int64  `json:"display_survival_ms"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// BootstrapResponse answers the slots manifest GET.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	Slots           []SlotInfo `json:"slots"`
}

type SlotInfo struct {
	ID         string `json:"id"`
	Phase      string `json:"phase"`
	Capacity   int    `json:"capacity"`
	Seated     int    `json:"seated"`
	MatchID    string `json:"match_id"`
	Tick       uint64 `json:"tick"`
	TickRateHz int    `json:"tick_rate_hz"`
}
