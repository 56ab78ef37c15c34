// Package archive freezes a finished match's artifacts into a
// self-contained directory: the journal, the record, and a meta.json
// describing both. Archives are what gets shipped off-box or attached
// to dispute reviews.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"snakepit.gg/internal/sim/match"
)

type MatchArchiveMeta struct {
	MatchID       string `json:"match_id"`
	SlotID        string `json:"slot_id"`
	Reason        string `json:"reason"`
	WinnerID      string `json:"winner_id,omitempty"`
	DurationTicks uint64 `json:"duration_ticks"`
	Entrants      int    `json:"entrants"`
	Journal       string `json:"journal,omitempty"`
	Record        string `json:"record,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveMatch copies a match's journal and record into
// `dataDir/archives/<slot>/match_<id>/`. Missing artifacts are skipped,
// not errors; a crash can leave a journal without a record.
func ArchiveMatch(dataDir string, sum match.Summary, journalPath, recordPath string) (string, error) {
	dir := filepath.Join(dataDir, "archives", sum.SlotID, fmt.Sprintf("match_%s", sum.MatchID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	meta := MatchArchiveMeta{
		MatchID:       sum.MatchID,
		SlotID:        sum.SlotID,
		Reason:        string(sum.Reason),
		WinnerID:      sum.WinnerID,
		DurationTicks: sum.DurationTicks,
		Entrants:      len(sum.Entrants),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	if journalPath != "" {
		dst := filepath.Join(dir, filepath.Base(journalPath))
		if err := copyFile(journalPath, dst); err == nil {
			meta.Journal = filepath.Base(dst)
		}
	}
	if recordPath != "" {
		dst := filepath.Join(dir, filepath.Base(recordPath))
		if err := copyFile(recordPath, dst); err == nil {
			meta.Record = filepath.Base(dst)
		}
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
