package multimatch

import (
	"sort"

	"snakepit.gg/internal/sim/match"
)

// HouseRanking orders entrants by survival first, score second, join
// order last: outliving a higher scorer outranks the score. The bonus
// lands only on the top row's displayed survival time, to separate it
// visually from a near-tied second place; raw ticks stay untouched.
func HouseRanking(survivalBonusMs int64) match.Ranker {
	return func(sum match.Summary) []match.RankedResult {
		tickMs := int64(50)
		if sum.TickRateHz > 0 {
			tickMs = int64(1000 / sum.TickRateHz)
		}
		rows := make([]match.RankedResult, 0, len(sum.Entrants))
		for _, e := range sum.Entrants {
			rows = append(rows, match.RankedResult{
				EntrantResult:     e,
				DisplaySurvivalMs: int64(e.SurvivalTicks) * tickMs,
			})
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].SurvivalTicks != rows[j].SurvivalTicks {
				return rows[i].SurvivalTicks > rows[j].SurvivalTicks
			}
			if rows[i].Score != rows[j].Score {
				return rows[i].Score > rows[j].Score
			}
			return rows[i].JoinSeq < rows[j].JoinSeq
		})
		for i := range rows {
			rows[i].Rank = i + 1
		}
		if len(rows) > 0 {
			rows[0].DisplaySurvivalMs += survivalBonusMs
		}
		return rows
	}
}
