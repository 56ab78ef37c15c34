package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"snakepit.gg/internal/sim/match"
)

func TestArchiveMatchCopiesArtifacts(t *testing.T) {
	dataDir := t.TempDir()
	journal := filepath.Join(dataDir, "journals", "main", "journal-m-1.jsonl.zst")
	record := filepath.Join(dataDir, "records", "main", "match-m-1.rec.zst")
	for _, p := range []string{journal, record} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sum := match.Summary{
		MatchID:       "m-1",
		SlotID:        "main",
		Reason:        match.ReasonTimeUp,
		WinnerID:      "S2",
		DurationTicks: 3600,
		Entrants:      []match.EntrantResult{{AgentID: "S1"}, {AgentID: "S2"}},
	}
	dir, err := ArchiveMatch(dataDir, sum, journal, record)
	if err != nil {
		t.Fatalf("ArchiveMatch: %v", err)
	}

	for _, name := range []string{"journal-m-1.jsonl.zst", "match-m-1.rec.zst", "meta.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatal(err)
	}
	var meta MatchArchiveMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.MatchID != "m-1" || meta.WinnerID != "S2" || meta.Entrants != 2 {
		t.Fatalf("meta: %+v", meta)
	}
	if meta.Journal == "" || meta.Record == "" {
		t.Fatalf("meta artifact names missing: %+v", meta)
	}
}

func TestArchiveMatchMissingArtifacts(t *testing.T) {
	dataDir := t.TempDir()
	sum := match.Summary{MatchID: "m-2", SlotID: "main", Reason: match.ReasonStopped}
	dir, err := ArchiveMatch(dataDir, sum, filepath.Join(dataDir, "nope.jsonl.zst"), "")
	if err != nil {
		t.Fatalf("ArchiveMatch: %v", err)
	}
	var meta MatchArchiveMeta
	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.Journal != "" || meta.Record != "" {
		t.Fatalf("expected empty artifact names, got %+v", meta)
	}
}
