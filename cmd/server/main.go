package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"snakepit.gg/internal/persistence/archive"
	"snakepit.gg/internal/persistence/indexdb"
	persistlog "snakepit.gg/internal/persistence/log"
	"snakepit.gg/internal/persistence/settlement"
	"snakepit.gg/internal/persistence/snapshot"
	"snakepit.gg/internal/pilot"
	"snakepit.gg/internal/protocol"
	"snakepit.gg/internal/sim/match"
	"snakepit.gg/internal/sim/multimatch"
	"snakepit.gg/internal/sim/tuning"
	"snakepit.gg/internal/transport/observer"
	"snakepit.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		arenasPath = flag.String("arenas", "", "path to arenas.yaml (default: <configs>/arenas.yaml)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "base seed for match RNG (0 = wall clock)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	ap := strings.TrimSpace(*arenasPath)
	if ap == "" {
		ap = filepath.Join(*configDir, "arenas.yaml")
	}
	if _, err := os.Stat(ap); err != nil {
		logger.Printf("arenas config not found (%s); using defaults", ap)
		ap = ""
	}
	slotsCfg, err := multimatch.Load(ap)
	if err != nil {
		logger.Fatalf("load arenas: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	settler := settlement.New(settlement.Config{
		BaseURL: os.Getenv("SP_SETTLEMENT_URL"),
		Token:   os.Getenv("SP_SETTLEMENT_TOKEN"),
	}, logger)
	if settler != nil {
		logger.Printf("settlement enabled url=%s", strings.TrimSpace(os.Getenv("SP_SETTLEMENT_URL")))
	}

	mirror, err := buildMirrorRuntime(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mirror.Close()

	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()

	opts := multimatch.Options{
		Tuning: tune,
		Logger: log.New(os.Stdout, "[slots] ", log.LstdFlags|log.Lmicroseconds),
		Audit:  auditLog,
		Seed:   *seed,
		Recorders: func(slotID, matchID string) []match.Recorder {
			return []match.Recorder{
				persistlog.NewJournalWriter(persistlog.JournalPath(*dataDir, slotID, matchID)),
			}
		},
		FillPilot: func(arena protocol.ArenaParams, seed int64) multimatch.Pilot {
			return pilot.New(arena, seed)
		},
		OnRecord: func(slotID string, cfg match.Config, sum match.Summary, ranking []match.RankedResult) {
			journalPath := persistlog.JournalPath(*dataDir, slotID, sum.MatchID)
			recordPath := snapshot.RecordPath(*dataDir, slotID, sum.MatchID)
			rec := snapshot.MatchRecordV1{
				Header:      snapshot.Header{Version: 1, MatchID: sum.MatchID, SlotID: slotID},
				Config:      cfg,
				Summary:     sum,
				Ranking:     ranking,
				JournalPath: journalPath,
				WrittenAt:   time.Now().UTC(),
			}
			if err := snapshot.WriteMatchRecord(recordPath, rec); err != nil {
				logger.Printf("write match record %s: %v", sum.MatchID, err)
				recordPath = ""
			}
			if idx != nil {
				idx.RecordArtifacts(sum.MatchID, recordPath, journalPath)
			}
			dir, err := archive.ArchiveMatch(*dataDir, sum, journalPath, recordPath)
			if err != nil {
				logger.Printf("archive match %s: %v", sum.MatchID, err)
				return
			}
			mirror.EnqueueArchive(dir)
		},
	}
	if idx != nil {
		opts.Store = idx
	}
	if settler != nil {
		opts.Settler = settler
	}

	slots, err := multimatch.NewManager(slotsCfg, opts)
	if err != nil {
		logger.Fatalf("slots: %v", err)
	}
	defer slots.Close()

	ctx, cancel := signalContext()
	defer cancel()

	obsSrv := observer.NewServer(slots, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeSlotMetrics(rw, slots)
		if idx != nil {
			depth, dropped := idx.QueueDepth()
			fmt.Fprintf(rw, "# HELP snakepit_index_queue_depth Pending index write queue.\n")
			fmt.Fprintf(rw, "# TYPE snakepit_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "snakepit_index_queue_depth %d\n", depth)
			fmt.Fprintf(rw, "# HELP snakepit_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE snakepit_index_dropped_total counter\n")
			fmt.Fprintf(rw, "snakepit_index_dropped_total %d\n", dropped)
		}
		writeMirrorMetrics(rw, mirror)
	})

	// Public read model.
	mux.HandleFunc("/v1/slots", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/matches", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.RecentMatches(r.URL.Query().Get("slot"), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"matches": rows})
	})
	mux.HandleFunc("/v1/match", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(rw, "missing id", http.StatusBadRequest)
			return
		}
		m, ents, err := idx.MatchDetail(id)
		if err != nil {
			http.Error(rw, "not found", http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"match": m, "entrants": ents})
	})
	mux.HandleFunc("/v1/leaderboard", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.Leaderboard(limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"leaderboard": rows})
	})

	// Live feeds.
	mux.HandleFunc("/v1/ws", ws.NewServer(slots, logger).Handler())
	mux.HandleFunc("/v1/watch", obsSrv.WSHandler())

	enableAdminHTTP := envBool("SP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("SP_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints; they never touch loop state directly.
		mux.HandleFunc("/admin/v1/slots", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			out := []multimatch.SlotStatus{}
			for _, id := range slots.SlotIDs() {
				if st, ok := slots.SlotState(id); ok {
					out = append(out, st)
				}
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"slots": out})
		})
		mux.HandleFunc("/admin/v1/history", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			slotID := r.URL.Query().Get("slot")
			if slotID == "" {
				slotID = slots.DefaultSlotID()
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"slot_id": slotID, "history": slots.History(slotID)})
		})
		mux.HandleFunc("/admin/v1/force_start", adminControl(slots.ForceStart, slots.DefaultSlotID()))
		mux.HandleFunc("/admin/v1/force_stop", adminControl(slots.ForceStop, slots.DefaultSlotID()))
	} else {
		logger.Printf("admin endpoints disabled (SP_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SP_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s slots=%v", *addr, slots.SlotIDs())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func adminControl(fn func(string) error, defaultSlot string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		slotID := strings.TrimSpace(r.URL.Query().Get("slot"))
		if slotID == "" {
			slotID = defaultSlot
		}
		rw.Header().Set("Content-Type", "application/json")
		if err := fn(slotID); err != nil {
			rw.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "slot_id": slotID})
	}
}

// writeSlotMetrics emits the minimal Prometheus exposition format for
// every slot's current match.
func writeSlotMetrics(rw http.ResponseWriter, slots *multimatch.Manager) {
	fmt.Fprintf(rw, "# HELP snakepit_match_tick Current match tick.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_tick gauge\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_seated Seated entrants.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_seated gauge\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_alive Alive snakes.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_alive gauge\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_pellets Pellets on the field.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_pellets gauge\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_observers Attached spectator sessions.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_observers gauge\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_kills_total Kills this match.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_kills_total counter\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_pellets_eaten_total Pellets eaten this match.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_pellets_eaten_total counter\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_denied_total Denied requests this match.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_denied_total counter\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_frames_dropped_total Frames shed to slow consumers.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_frames_dropped_total counter\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_step_us Last tick step duration in microseconds.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_step_us gauge\n")
	fmt.Fprintf(rw, "# HELP snakepit_match_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_match_queue_depth gauge\n")

	all := slots.Metrics()
	for _, id := range slots.SlotIDs() {
		m := all[id]
		fmt.Fprintf(rw, "snakepit_match_tick{slot=%q} %d\n", id, m.Tick)
		fmt.Fprintf(rw, "snakepit_match_seated{slot=%q} %d\n", id, m.Seated)
		fmt.Fprintf(rw, "snakepit_match_alive{slot=%q} %d\n", id, m.Alive)
		fmt.Fprintf(rw, "snakepit_match_pellets{slot=%q} %d\n", id, m.Pellets)
		fmt.Fprintf(rw, "snakepit_match_observers{slot=%q} %d\n", id, m.Observers)
		fmt.Fprintf(rw, "snakepit_match_kills_total{slot=%q} %d\n", id, m.KillsTotal)
		fmt.Fprintf(rw, "snakepit_match_pellets_eaten_total{slot=%q} %d\n", id, m.PelletsEaten)
		fmt.Fprintf(rw, "snakepit_match_denied_total{slot=%q} %d\n", id, m.DeniedTotal)
		fmt.Fprintf(rw, "snakepit_match_frames_dropped_total{slot=%q} %d\n", id, m.FramesDropped)
		fmt.Fprintf(rw, "snakepit_match_step_us{slot=%q} %d\n", id, m.StepUS)
		fmt.Fprintf(rw, "snakepit_match_queue_depth{slot=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "snakepit_match_queue_depth{slot=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "snakepit_match_queue_depth{slot=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "snakepit_match_queue_depth{slot=%q,queue=%q} %d\n", id, "control", m.QueueDepths.Control)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
