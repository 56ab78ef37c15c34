// Package snapshot writes finished-match records: a JSON header line
// for quick inspection followed by a gob body, zstd compressed. The
// record is the durable artifact a results page or dispute review reads
// without touching the sqlite index.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"snakepit.gg/internal/sim/match"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	MatchID string `json:"match_id"`
	SlotID  string `json:"slot_id"`
}

// MatchRecordV1 is everything about one finished match: the config
// that ran it, the terminal summary, and the house ranking shown to
// players.
type MatchRecordV1 struct {
	Header Header `json:"header"`

	Config  match.Config         `json:"config"`
	Summary match.Summary        `json:"summary"`
	Ranking []match.RankedResult `json:"ranking"`

	JournalPath string    `json:"journal_path,omitempty"`
	WrittenAt   time.Time `json:"written_at"`
}

// RecordPath is where a match record lives under the data dir.
func RecordPath(dataDir, slotID, matchID string) string {
	return filepath.Join(dataDir, "records", slotID, fmt.Sprintf("match-%s.rec.zst", matchID))
}

func WriteMatchRecord(path string, rec MatchRecordV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(rec.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&rec); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadMatchRecord(path string) (MatchRecordV1, error) {
	var rec MatchRecordV1
	f, err := os.Open(path)
	if err != nil {
		return rec, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return rec, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Read header line (ignore it; gob also contains the header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&rec); err != nil {
		return rec, fmt.Errorf("gob decode: %w", err)
	}
	return rec, nil
}
