package snapshot

import (
	"testing"
	"time"

	"snakepit.gg/internal/sim/match"
)

func TestMatchRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := RecordPath(dir, "main", "m-1")

	rec := MatchRecordV1{
		Header: Header{Version: 1, MatchID: "m-1", SlotID: "main"},
		Config: match.Config{ID: "m-1", SlotID: "main", Seed: 99, TickRateHz: 20, Capacity: 8},
		Summary: match.Summary{
			MatchID:       "m-1",
			SlotID:        "main",
			TickRateHz:    20,
			DurationTicks: 1200,
			Reason:        match.ReasonLastSurvivor,
			WinnerID:      "S2",
			Entrants: []match.EntrantResult{
				{AgentID: "S1", Name: "ada", JoinSeq: 1, Score: 40, SurvivalTicks: 800, KilledBy: "S2"},
				{AgentID: "S2", Name: "ben", JoinSeq: 2, Score: 65, SurvivalTicks: 1200, Alive: true},
			},
		},
		Ranking: []match.RankedResult{
			{Rank: 1, EntrantResult: match.EntrantResult{AgentID: "S2"}, DisplaySurvivalMs: 60_750},
			{Rank: 2, EntrantResult: match.EntrantResult{AgentID: "S1"}, DisplaySurvivalMs: 40_000},
		},
		JournalPath: "journals/main/journal-m-1.jsonl.zst",
		WrittenAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := WriteMatchRecord(path, rec); err != nil {
		t.Fatalf("WriteMatchRecord: %v", err)
	}

	got, err := ReadMatchRecord(path)
	if err != nil {
		t.Fatalf("ReadMatchRecord: %v", err)
	}
	if got.Header != rec.Header {
		t.Fatalf("header = %+v, want %+v", got.Header, rec.Header)
	}
	if got.Config.Seed != 99 || got.Config.Capacity != 8 {
		t.Fatalf("config = %+v", got.Config)
	}
	if got.Summary.WinnerID != "S2" || got.Summary.Reason != match.ReasonLastSurvivor {
		t.Fatalf("summary = %+v", got.Summary)
	}
	if len(got.Summary.Entrants) != 2 || got.Summary.Entrants[0].KilledBy != "S2" {
		t.Fatalf("entrants = %+v", got.Summary.Entrants)
	}
	if len(got.Ranking) != 2 || got.Ranking[0].Rank != 1 || got.Ranking[0].AgentID != "S2" {
		t.Fatalf("ranking = %+v", got.Ranking)
	}
	if got.JournalPath != rec.JournalPath {
		t.Fatalf("journal path = %s", got.JournalPath)
	}
}

func TestReadMatchRecordMissing(t *testing.T) {
	if _, err := ReadMatchRecord(RecordPath(t.TempDir(), "main", "ghost")); err == nil {
		t.Fatal("expected error for missing record")
	}
}
