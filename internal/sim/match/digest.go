package match

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func fmtF(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// stateDigest canonicalizes the simulation state after a tick. Replays
// compare digests tick by tick; any divergence pins down the first bad
// tick. Wall-clock fields stay out of the digest.
func (m *Match) stateDigest(tick uint64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%d;phase=%s;", tick, m.phase)

	for _, id := range m.order {
		s := m.snakes[id]
		fmt.Fprintf(&b, "s:%s|%s|%t|%s|%d|%d|%s|%d|",
			s.ID, s.Color, s.Alive, fmtF(s.AngleDeg), s.Score, len(s.Segments), s.KilledBy, s.DeathTick)
		for _, seg := range s.Segments {
			b.WriteString(fmtF(seg.X))
			b.WriteByte(',')
			b.WriteString(fmtF(seg.Y))
			b.WriteByte(';')
		}
	}

	pids := make([]string, 0, len(m.pellets))
	for pid := range m.pellets {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	for _, pid := range pids {
		p := m.pellets[pid]
		fmt.Fprintf(&b, "p:%s|%s|%s|%d;", pid, fmtF(p.Pos.X), fmtF(p.Pos.Y), p.Value)
	}

	fmt.Fprintf(&b, "c:%d|%d|%d", m.nextAgentNum, m.nextPelletNum, m.colorIdx)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ConfigDigest fingerprints a match config for the journal header.
func ConfigDigest(cfg Config) string {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
