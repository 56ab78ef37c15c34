// Package indexdb maintains the queryable sqlite index of finished
// matches: per-match rows, per-entrant rows, and the rolling
// leaderboard. Journals and match records remain the source of truth;
// the index can always be rebuilt from them.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"snakepit.gg/internal/sim/match"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqMatch reqKind = iota + 1
	reqArtifacts
)

type req struct {
	kind reqKind

	sum     match.Summary
	ranking []match.RankedResult

	matchID     string
	recordPath  string
	journalPath string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			slot_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			tick_rate_hz INTEGER NOT NULL,
			duration_ticks INTEGER NOT NULL,
			reason TEXT NOT NULL,
			winner_id TEXT,
			entrants INTEGER NOT NULL,
			record_path TEXT,
			journal_path TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_slot_ended ON matches(slot_id, ended_at);`,
		`CREATE TABLE IF NOT EXISTS entrants (
			match_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			credential TEXT,
			join_seq INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			score INTEGER NOT NULL,
			segments INTEGER NOT NULL,
			survival_ticks INTEGER NOT NULL,
			display_survival_ms INTEGER NOT NULL,
			alive INTEGER NOT NULL,
			killed_by TEXT,
			PRIMARY KEY (match_id, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entrants_credential ON entrants(credential);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			credential TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			matches INTEGER NOT NULL,
			wins INTEGER NOT NULL,
			best_score INTEGER NOT NULL,
			total_score INTEGER NOT NULL,
			total_survival_ticks INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_wins ON leaderboard(wins, total_score);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// QueueDepth reports the pending write queue and the number of records
// dropped because the queue was full.
func (s *SQLiteIndex) QueueDepth() (depth int, dropped uint64) {
	if s == nil {
		return 0, 0
	}
	return len(s.ch), s.dropped.Load()
}

// RecordMatch queues one finished match for indexing. Never blocks: if
// the queue is full the record is dropped and counted; the journal and
// record files remain the source of truth.
func (s *SQLiteIndex) RecordMatch(sum match.Summary, ranking []match.RankedResult) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqMatch, sum: sum, ranking: ranking}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// RecordArtifacts attaches the on-disk record and journal paths to an
// already-queued match row.
func (s *SQLiteIndex) RecordArtifacts(matchID, recordPath, journalPath string) {
	if s == nil || s.closed.Load() || matchID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqArtifacts, matchID: matchID, recordPath: recordPath, journalPath: journalPath}:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	for r := range s.ch {
		switch r.kind {
		case reqMatch:
			s.writeMatch(ctx, r.sum, r.ranking)
		case reqArtifacts:
			_, _ = s.db.ExecContext(ctx,
				`UPDATE matches SET record_path=?, journal_path=? WHERE match_id=?`,
				r.recordPath, r.journalPath, r.matchID)
		}
	}
}

// writeMatch indexes one match in a single transaction: the match row,
// its entrant rows, and the leaderboard upserts. Matches finish seconds
// apart, so each gets its own commit.
func (s *SQLiteIndex) writeMatch(ctx context.Context, sum match.Summary, ranking []match.RankedResult) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() { _ = tx.Rollback() }()

	raw, _ := json.Marshal(sum)
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO matches(match_id,slot_id,started_at,ended_at,tick_rate_hz,duration_ticks,reason,winner_id,entrants,raw_json)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		sum.MatchID, sum.SlotID,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.EndedAt.UTC().Format(time.RFC3339Nano),
		sum.TickRateHz, int64(sum.DurationTicks),
		string(sum.Reason), sum.WinnerID, len(sum.Entrants),
		string(raw),
	); err != nil {
		return
	}

	insEntrant, err := tx.Prepare(
		`INSERT OR REPLACE INTO entrants(match_id,agent_id,name,credential,join_seq,rank,score,segments,survival_ticks,display_survival_ms,alive,killed_by)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return
	}
	defer insEntrant.Close()
	upsertBoard, err := tx.Prepare(
		`INSERT INTO leaderboard(credential,name,matches,wins,best_score,total_score,total_survival_ticks,updated_at)
		 VALUES(?,?,1,?,?,?,?,?)
		 ON CONFLICT(credential) DO UPDATE SET
			name=excluded.name,
			matches=matches+1,
			wins=wins+excluded.wins,
			best_score=MAX(best_score,excluded.best_score),
			total_score=total_score+excluded.total_score,
			total_survival_ticks=total_survival_ticks+excluded.total_survival_ticks,
			updated_at=excluded.updated_at`)
	if err != nil {
		return
	}
	defer upsertBoard.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, row := range ranking {
		alive := 0
		if row.Alive {
			alive = 1
		}
		if _, err := insEntrant.Exec(
			sum.MatchID, row.AgentID, row.Name, row.Credential,
			row.JoinSeq, row.Rank, row.Score, row.Segments,
			int64(row.SurvivalTicks), row.DisplaySurvivalMs,
			alive, row.KilledBy,
		); err != nil {
			return
		}

		cred := row.Credential
		if cred == "" {
			cred = row.Name
		}
		win := 0
		if row.AgentID == sum.WinnerID {
			win = 1
		}
		if _, err := upsertBoard.Exec(
			cred, row.Name, win, row.Score, row.Score,
			int64(row.SurvivalTicks), now,
		); err != nil {
			return
		}
	}

	_ = tx.Commit()
}

// MatchRow is one line of the match index.
type MatchRow struct {
	MatchID       string `json:"match_id"`
	SlotID        string `json:"slot_id"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at"`
	TickRateHz    int    `json:"tick_rate_hz"`
	DurationTicks int64  `json:"duration_ticks"`
	Reason        string `json:"reason"`
	WinnerID      string `json:"winner_id,omitempty"`
	Entrants      int    `json:"entrants"`
	RecordPath    string `json:"record_path,omitempty"`
	JournalPath   string `json:"journal_path,omitempty"`
}

type EntrantRow struct {
	AgentID           string `json:"agent_id"`
	Name              string `json:"name"`
	Credential        string `json:"credential,omitempty"`
	JoinSeq           int    `json:"join_seq"`
	Rank              int    `json:"rank"`
	Score             int    `json:"score"`
	Segments          int    `json:"segments"`
	SurvivalTicks     int64  `json:"survival_ticks"`
	DisplaySurvivalMs int64  `json:"display_survival_ms"`
	Alive             bool   `json:"alive"`
	KilledBy          string `json:"killed_by,omitempty"`
}

type LeaderboardRow struct {
	Credential         string `json:"credential"`
	Name               string `json:"name"`
	Matches            int    `json:"matches"`
	Wins               int    `json:"wins"`
	BestScore          int    `json:"best_score"`
	TotalScore         int    `json:"total_score"`
	TotalSurvivalTicks int64  `json:"total_survival_ticks"`
}

// Flush waits until the write queue drains. Test helper; production
// callers rely on Close.
func (s *SQLiteIndex) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for len(s.ch) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// one extra beat for the in-flight request
	time.Sleep(20 * time.Millisecond)
}

func (s *SQLiteIndex) RecentMatches(slotID string, limit int) ([]MatchRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `SELECT match_id,slot_id,started_at,ended_at,tick_rate_hz,duration_ticks,reason,
			COALESCE(winner_id,''),entrants,COALESCE(record_path,''),COALESCE(journal_path,'')
		FROM matches`
	args := []any{}
	if slotID != "" {
		q += ` WHERE slot_id=?`
		args = append(args, slotID)
	}
	q += ` ORDER BY ended_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.MatchID, &m.SlotID, &m.StartedAt, &m.EndedAt, &m.TickRateHz,
			&m.DurationTicks, &m.Reason, &m.WinnerID, &m.Entrants, &m.RecordPath, &m.JournalPath); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) MatchDetail(matchID string) (MatchRow, []EntrantRow, error) {
	var m MatchRow
	err := s.db.QueryRow(
		`SELECT match_id,slot_id,started_at,ended_at,tick_rate_hz,duration_ticks,reason,
			COALESCE(winner_id,''),entrants,COALESCE(record_path,''),COALESCE(journal_path,'')
		FROM matches WHERE match_id=?`, matchID).
		Scan(&m.MatchID, &m.SlotID, &m.StartedAt, &m.EndedAt, &m.TickRateHz,
			&m.DurationTicks, &m.Reason, &m.WinnerID, &m.Entrants, &m.RecordPath, &m.JournalPath)
	if err != nil {
		return m, nil, err
	}

	rows, err := s.db.Query(
		`SELECT agent_id,name,COALESCE(credential,''),join_seq,rank,score,segments,
			survival_ticks,display_survival_ms,alive,COALESCE(killed_by,'')
		FROM entrants WHERE match_id=? ORDER BY rank ASC`, matchID)
	if err != nil {
		return m, nil, err
	}
	defer rows.Close()

	var ents []EntrantRow
	for rows.Next() {
		var e EntrantRow
		var alive int
		if err := rows.Scan(&e.AgentID, &e.Name, &e.Credential, &e.JoinSeq, &e.Rank, &e.Score,
			&e.Segments, &e.SurvivalTicks, &e.DisplaySurvivalMs, &alive, &e.KilledBy); err != nil {
			return m, nil, err
		}
		e.Alive = alive != 0
		ents = append(ents, e)
	}
	return m, ents, rows.Err()
}

func (s *SQLiteIndex) Leaderboard(limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT credential,name,matches,wins,best_score,total_score,total_survival_ticks
		FROM leaderboard ORDER BY wins DESC, total_score DESC, credential ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.Credential, &r.Name, &r.Matches, &r.Wins, &r.BestScore,
			&r.TotalScore, &r.TotalSurvivalTicks); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
