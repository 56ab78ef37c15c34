package multimatch

import (
	"testing"

	"snakepit.gg/internal/sim/match"
)

func TestHouseRankingSurvivalPrimary(t *testing.T) {
	sum := match.Summary{
		TickRateHz: 20,
		Entrants: []match.EntrantResult{
			{AgentID: "early-death", JoinSeq: 0, Score: 90, SurvivalTicks: 100},
			{AgentID: "long-liver", JoinSeq: 1, Score: 10, SurvivalTicks: 400},
			{AgentID: "mid", JoinSeq: 2, Score: 50, SurvivalTicks: 200},
		},
	}
	rows := HouseRanking(750)(sum)
	want := []string{"long-liver", "mid", "early-death"}
	for i, id := range want {
		if rows[i].AgentID != id {
			t.Fatalf("rank %d = %s, want %s", i+1, rows[i].AgentID, id)
		}
		if rows[i].Rank != i+1 {
			t.Fatalf("row %d rank = %d", i, rows[i].Rank)
		}
	}
}

func TestHouseRankingTiesScoreThenJoinOrder(t *testing.T) {
	sum := match.Summary{
		TickRateHz: 20,
		Entrants: []match.EntrantResult{
			{AgentID: "b", JoinSeq: 1, Score: 30, SurvivalTicks: 200},
			{AgentID: "a", JoinSeq: 0, Score: 30, SurvivalTicks: 200},
			{AgentID: "rich", JoinSeq: 2, Score: 99, SurvivalTicks: 200},
		},
	}
	rows := HouseRanking(0)(sum)
	want := []string{"rich", "a", "b"}
	for i, id := range want {
		if rows[i].AgentID != id {
			t.Fatalf("rank %d = %s, want %s", i+1, rows[i].AgentID, id)
		}
	}
}

func TestHouseRankingBonusIsDisplayOnly(t *testing.T) {
	sum := match.Summary{
		TickRateHz: 20, // 50ms ticks
		Entrants: []match.EntrantResult{
			{AgentID: "win", JoinSeq: 0, SurvivalTicks: 100},
			{AgentID: "lose", JoinSeq: 1, SurvivalTicks: 40},
		},
	}
	rows := HouseRanking(750)(sum)
	if rows[0].DisplaySurvivalMs != 100*50+750 {
		t.Fatalf("top display ms = %d, want %d", rows[0].DisplaySurvivalMs, 100*50+750)
	}
	if rows[1].DisplaySurvivalMs != 40*50 {
		t.Fatalf("second display ms = %d, want %d", rows[1].DisplaySurvivalMs, 40*50)
	}
	// raw tick counts stay untouched
	if rows[0].SurvivalTicks != 100 || rows[1].SurvivalTicks != 40 {
		t.Fatalf("raw ticks mutated: %d %d", rows[0].SurvivalTicks, rows[1].SurvivalTicks)
	}
}

func TestHouseRankingEmpty(t *testing.T) {
	if rows := HouseRanking(750)(match.Summary{TickRateHz: 20}); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}
