package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"snakepit.gg/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "matches":
			matchesCmd(os.Args[2:])
			return
		case "match":
			matchCmd(os.Args[2:])
			return
		case "leaderboard":
			leaderboardCmd(os.Args[2:])
			return
		case "record":
			recordCmd(os.Args[2:])
			return
		case "slots":
			slotsCmd(os.Args[2:])
			return
		case "force_start":
			forceCmd("force_start", os.Args[2:])
			return
		case "force_stop":
			forceCmd("force_stop", os.Args[2:])
			return
		}
	}
	usage()
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin matches|match|leaderboard|record|slots|force_start|force_stop [flags]")
	fmt.Fprintln(os.Stderr, "  matches      [-data ./data] [-slot S] [-limit N]   recent finished matches")
	fmt.Fprintln(os.Stderr, "  match        [-data ./data] -id MATCH              one match with its entrants")
	fmt.Fprintln(os.Stderr, "  leaderboard  [-data ./data] [-limit N]             credential leaderboard")
	fmt.Fprintln(os.Stderr, "  record       -path FILE                            decode a match record file")
	fmt.Fprintln(os.Stderr, "  slots        [-url http://127.0.0.1:8080]          live slot status")
	fmt.Fprintln(os.Stderr, "  force_start  [-url ...] [-slot S]                  start a lobby now")
	fmt.Fprintln(os.Stderr, "  force_stop   [-url ...] [-slot S]                  end the active match")
	os.Exit(2)
}

func recordCmd(args []string) {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	path := fs.String("path", "", "match record file (.rec.zst)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "missing -path")
		os.Exit(2)
	}
	rec, err := snapshot.ReadMatchRecord(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read record:", err)
		os.Exit(1)
	}
	printJSON(rec)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
