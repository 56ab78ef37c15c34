package match

import "time"

type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseActive   Phase = "ACTIVE"
	PhaseFinished Phase = "FINISHED"
)

type EndReason string

const (
	ReasonTimeUp       EndReason = "TIME_UP"
	ReasonLastSurvivor EndReason = "LAST_SURVIVOR"
	ReasonAllDead      EndReason = "ALL_DEAD"
	ReasonStopped      EndReason = "STOPPED"
)

// EntrantResult is one entrant's final line in the match summary.
type EntrantResult struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	SkinID     string `json:"skin_id,omitempty"`
	Credential string `json:"credential,omitempty"`
	JoinSeq    int    `json:"join_seq"`

	Score         int    `json:"score"`
	Segments      int    `json:"segments"`
	Alive         bool   `json:"alive"`
	KilledBy      string `json:"killed_by,omitempty"`
	DeathTick     uint64 `json:"death_tick,omitempty"`
	SurvivalTicks uint64 `json:"survival_ticks"`
}

// Summary is the terminal record of a match, handed to the manager and
// every end sink exactly once. Entrants are in join order.
type Summary struct {
	MatchID       string          `json:"match_id"`
	SlotID        string          `json:"slot_id"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       time.Time       `json:"ended_at"`
	TickRateHz    int             `json:"tick_rate_hz"`
	DurationTicks uint64          `json:"duration_ticks"`
	Reason        EndReason       `json:"reason"`
	WinnerID      string          `json:"winner_id,omitempty"`
	Entrants      []EntrantResult `json:"entrants"`
}

// ComputeWinner picks the highest score; ties go to the earliest join.
// Entrants must be in join order, which is the order every pass over
// the match uses. No entrants means no winner.
func ComputeWinner(entrants []EntrantResult) string {
	winner := ""
	best := 0
	for i, e := range entrants {
		if i == 0 || e.Score > best {
			winner = e.AgentID
			best = e.Score
		}
	}
	return winner
}

// RankedResult is one row of the end-of-match ranking as shown to
// players and spectators. DisplaySurvivalMs is presentation only; the
// raw tick counts in EntrantResult stay untouched.
type RankedResult struct {
	Rank int `json:"rank"`
	EntrantResult
	DisplaySurvivalMs int64 `json:"display_survival_ms"`
}

// Ranker orders a summary's entrants for display. The manager installs
// the house rule; without one the engine falls back to join order.
type Ranker func(Summary) []RankedResult

func defaultRanking(sum Summary) []RankedResult {
	tickMs := int64(1000)
	if sum.TickRateHz > 0 {
		tickMs = int64(1000 / sum.TickRateHz)
	}
	rows := make([]RankedResult, 0, len(sum.Entrants))
	for i, e := range sum.Entrants {
		rows = append(rows, RankedResult{
			Rank:              i + 1,
			EntrantResult:     e,
			DisplaySurvivalMs: int64(e.SurvivalTicks) * tickMs,
		})
	}
	return rows
}
