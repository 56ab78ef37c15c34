package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"snakepit.gg/internal/sim/match"
	"snakepit.gg/internal/sim/multimatch"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// AuditLogger writes slot lifecycle and admission events (compressed,
// hourly rotated).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v multimatch.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                             { return l.w.Close() }

// JournalLine is one line of a match journal file. Exactly one of the
// three payloads is set, discriminated by Kind.
type JournalLine struct {
	Kind  string              `json:"kind"` // start | tick | end
	Start *match.StartEntry   `json:"start,omitempty"`
	Tick  *match.TickLogEntry `json:"tick,omitempty"`
	End   *match.Summary      `json:"end,omitempty"`
}

// JournalWriter records one match's input journal to a single
// compressed JSONL file: a start line, one line per tick, an end line.
// It satisfies the engine's recorder contract.
type JournalWriter struct {
	path string

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	failed bool
}

// JournalPath is where a match's journal lives under the data dir.
func JournalPath(dataDir, slotID, matchID string) string {
	return filepath.Join(dataDir, "journals", slotID, fmt.Sprintf("journal-%s.jsonl.zst", matchID))
}

func NewJournalWriter(path string) *JournalWriter {
	return &JournalWriter{path: path}
}

func (j *JournalWriter) Path() string { return j.path }

func (j *JournalWriter) WriteStart(e match.StartEntry) error {
	return j.write(JournalLine{Kind: "start", Start: &e})
}

func (j *JournalWriter) WriteTick(e match.TickLogEntry) error {
	return j.write(JournalLine{Kind: "tick", Tick: &e})
}

// WriteEnd finishes the journal and closes the file.
func (j *JournalWriter) WriteEnd(sum match.Summary) error {
	if err := j.write(JournalLine{Kind: "end", End: &sum}); err != nil {
		_ = j.Close()
		return err
	}
	return j.Close()
}

func (j *JournalWriter) write(line JournalLine) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failed {
		return nil // journal already abandoned; never stall the loop
	}
	if j.w == nil {
		if err := j.openLocked(); err != nil {
			j.failed = true
			return err
		}
	}
	b, err := json.Marshal(line)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *JournalWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (j *JournalWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var err1 error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err1 = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	return err1
}

// Journal is a fully decoded match journal.
type Journal struct {
	Start match.StartEntry
	Ticks []match.TickLogEntry
	End   *match.Summary
}

// ReadJournal decodes a journal file. A missing end line is not an
// error; crashed matches leave journals without one.
func ReadJournal(path string) (*Journal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out Journal
	haveStart := false
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		var line JournalLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("journal %s: %w", filepath.Base(path), err)
		}
		switch line.Kind {
		case "start":
			if line.Start != nil {
				out.Start = *line.Start
				haveStart = true
			}
		case "tick":
			if line.Tick != nil {
				out.Ticks = append(out.Ticks, *line.Tick)
			}
		case "end":
			out.End = line.End
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !haveStart {
		return nil, fmt.Errorf("journal %s: missing start entry", filepath.Base(path))
	}
	return &out, nil
}
