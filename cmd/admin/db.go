package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snakepit.gg/internal/persistence/indexdb"
)

func openIndex(dataDir, dbPath string) *indexdb.SQLiteIndex {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "index.db")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index not found:", path)
		os.Exit(2)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return idx
}

func matchesCmd(args []string) {
	fs := flag.NewFlagSet("matches", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	slotID := fs.String("slot", "", "slot id filter (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	idx := openIndex(*dataDir, *dbPath)
	defer idx.Close()

	rows, err := idx.RecentMatches(*slotID, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func matchCmd(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	id := fs.String("id", "", "match id (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}

	idx := openIndex(*dataDir, *dbPath)
	defer idx.Close()

	m, entrants, err := idx.MatchDetail(strings.TrimSpace(*id))
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printJSON(m)
	for _, e := range entrants {
		printJSON(e)
	}
}

func leaderboardCmd(args []string) {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	idx := openIndex(*dataDir, *dbPath)
	defer idx.Close()

	rows, err := idx.Leaderboard(*limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}
