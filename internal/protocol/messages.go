package protocol

// JoinMsg is the first client message on a player connection.
// Credential is an opaque token used for duplicate-seat detection; when
// empty the transport falls back to the display name.
type JoinMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	SkinID          string `json:"skin_id,omitempty"`
	Credential      string `json:"credential,omitempty"`
}

type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	MatchID         string      `json:"match_id"`
	SlotID          string      `json:"slot_id"`
	Color           string      `json:"color"`
	Arena           ArenaParams `json:"arena"`
}

type ArenaParams struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	TickRateHz   int     `json:"tick_rate_hz"`
	WallMargin   float64 `json:"wall_margin"`
	HeadRadius   float64 `json:"head_radius"`
	BodyRadius   float64 `json:"body_radius"`
	PelletRadius float64 `json:"pellet_radius"`
}

// SteerMsg carries one steering intent: an absolute heading or a signed
// delta, both in degrees. Exactly one of the two should be set.
type SteerMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Ref             string   `json:"ref,omitempty"`
	AngleDeg        *float64 `json:"angle_deg,omitempty"`
	DeltaDeg        *float64 `json:"delta_deg,omitempty"`
}

// AckMsg answers a SteerMsg. On success NewAngleDeg holds the applied
// heading; on failure Code holds the reason and NewAngleDeg is absent.
type AckMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Ref             string   `json:"ref,omitempty"`
	Tick            uint64   `json:"tick"`
	OK              bool     `json:"ok"`
	Code            string   `json:"code,omitempty"`
	NewAngleDeg     *float64 `json:"new_angle_deg,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// StateMsg is the per-tick authoritative state pushed to every player.
type StateMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	MatchID         string       `json:"match_id"`
	Phase           string       `json:"phase"`
	Tick            uint64       `json:"tick"`
	You             string       `json:"you,omitempty"`
	RemainingMs     int64        `json:"remaining_ms,omitempty"`
	Snakes          []SnakeWire  `json:"snakes"`
	Pellets         []PelletWire `json:"pellets,omitempty"`
}

type SnakeWire struct {
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

type PelletWire struct {
	ID    string     `json:"id"`
	Pos   [2]float64 `json:"pos"`
	Value int        `json:"value"`
}

// ResultMsg is broadcast once when a match finishes.
type ResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	MatchID         string     `json:"match_id"`
	SlotID          string     `json:"slot_id"`
	Reason          string     `json:"reason"`
	WinnerID        string     `json:"winner_id,omitempty"`
	DurationTicks   uint64     `json:"duration_ticks"`
	Ranking         []RankWire `json:"ranking"`
}

type RankWire struct {
	Rank              int    `json:"rank"`
	AgentID           string `json:"agent_id"`
	Name              string `json:"name"`
	Score             int    `json:"score"`
	SurvivalTicks     uint64 `json:"survival_ticks"`
	DisplaySurvivalMs int64  `json:"display_survival_ms"`
	Alive             bool   `json:"alive"`
	KilledBy          string `json:"killed_by,omitempty"`
}
