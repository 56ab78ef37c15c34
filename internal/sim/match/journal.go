package match

import "time"

// Recorder receives the match's input journal: one start entry, one
// entry per tick, one end entry. Implementations must not block; a
// recorder that cannot keep up should shed internally.
type Recorder interface {
	WriteStart(e StartEntry) error
	WriteTick(e TickLogEntry) error
	WriteEnd(sum Summary) error
}

// StartEntry pins down everything needed to re-run the match: full
// config, seed, and the ordered lobby admissions and departures that
// consumed RNG draws before the first tick.
type StartEntry struct {
	MatchID      string       `json:"match_id"`
	SlotID       string       `json:"slot_id"`
	Config       Config       `json:"config"`
	ConfigDigest string       `json:"config_digest"`
	StartedAt    time.Time    `json:"started_at"`
	DurationMs   int64        `json:"duration_ms"`
	Lobby        []LobbyEvent `json:"lobby,omitempty"`
}

type LobbyEvent struct {
	Kind       string `json:"kind"` // join | leave
	AgentID    string `json:"agent_id,omitempty"`
	Name       string `json:"name,omitempty"`
	SkinID     string `json:"skin_id,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// TickLogEntry records the inputs applied before this tick and the
// state digest after it.
type TickLogEntry struct {
	Tick   uint64          `json:"tick"`
	Leaves []string        `json:"leaves,omitempty"`
	Steers []RecordedSteer `json:"steers,omitempty"`
	Deaths []RecordedDeath `json:"deaths,omitempty"`
	Digest string          `json:"digest"`
}

type RecordedSteer struct {
	AgentID  string   `json:"agent_id"`
	AngleDeg *float64 `json:"angle_deg,omitempty"`
	DeltaDeg *float64 `json:"delta_deg,omitempty"`
}

// RecordedDeath is informational; replay re-derives deaths from the
// inputs and checks them against the digest.
type RecordedDeath struct {
	AgentID  string `json:"agent_id"`
	KilledBy string `json:"killed_by,omitempty"`
	Tick     uint64 `json:"tick"`
}
