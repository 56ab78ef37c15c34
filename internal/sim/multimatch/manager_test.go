package multimatch

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"snakepit.gg/internal/protocol"
	"snakepit.gg/internal/sim/match"
	"snakepit.gg/internal/sim/tuning"
)

func fastSpec() SlotSpec {
	return SlotSpec{
		ID:              "main",
		Capacity:        8,
		CountdownMs:     60,
		MinCountdownMs:  20,
		MatchDurationMs: 60_000,
		ResultsDelayMs:  40,
		ArenaWidth:      1000,
		ArenaHeight:     1000,
		WallMargin:      50,
		HistorySize:     4,
	}
}

func newTestManager(t *testing.T, mutate func(*SlotSpec), opts Options) *Manager {
	t.Helper()
	spec := fastSpec()
	if mutate != nil {
		mutate(&spec)
	}
	cfg := Config{DefaultSlotID: spec.ID, Slots: []SlotSpec{spec}}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Tuning.TickRateHz == 0 {
		opts.Tuning = tuning.Default()
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	mgr, err := NewManager(cfg, opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(mgr.Close)
	return mgr
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func slotPhase(t *testing.T, mgr *Manager, slotID string) SlotPhase {
	t.Helper()
	st, ok := mgr.SlotState(slotID)
	if !ok {
		t.Fatalf("slot %s not found", slotID)
	}
	return st.Phase
}

func TestLoneJoinerNeverArmsCountdown(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	res, code := mgr.Join("main", "solo", "", "cred-a", nil)
	if code != "" {
		t.Fatalf("join code = %q", code)
	}
	if res.Seated != 1 {
		t.Fatalf("seated = %d, want 1", res.Seated)
	}
	time.Sleep(200 * time.Millisecond)
	if p := slotPhase(t, mgr, "main"); p != SlotLobby {
		t.Fatalf("phase = %s, want %s", p, SlotLobby)
	}
}

func TestDuplicateCredentialDoesNotArmCountdown(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	if _, code := mgr.Join("main", "solo", "", "cred-a", nil); code != "" {
		t.Fatalf("first join code = %q", code)
	}
	res, code := mgr.Join("main", "solo-again", "", "cred-a", nil)
	if code != protocol.ErrSeatTaken {
		t.Fatalf("dup join code = %q, want %s", code, protocol.ErrSeatTaken)
	}
	if res.Seated != 1 {
		t.Fatalf("seated = %d, want 1", res.Seated)
	}
	time.Sleep(200 * time.Millisecond)
	if p := slotPhase(t, mgr, "main"); p != SlotLobby {
		t.Fatalf("phase = %s, want %s", p, SlotLobby)
	}
}

func TestSecondJoinArmsCountdownThenStarts(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	mustJoinSlot(t, mgr, "main", "a", "cred-a")
	mustJoinSlot(t, mgr, "main", "b", "cred-b")
	if p := slotPhase(t, mgr, "main"); p != SlotCountdown {
		t.Fatalf("phase = %s, want %s", p, SlotCountdown)
	}
	waitFor(t, "match start", func() bool { return slotPhase(t, mgr, "main") == SlotActive })
}

func TestLeaveDuringCountdownCancels(t *testing.T) {
	mgr := newTestManager(t, func(s *SlotSpec) {
		s.CountdownMs = 500
		s.MinCountdownMs = 500
	}, Options{})
	mustJoinSlot(t, mgr, "main", "a", "cred-a")
	b := mustJoinSlot(t, mgr, "main", "b", "cred-b")
	if p := slotPhase(t, mgr, "main"); p != SlotCountdown {
		t.Fatalf("phase = %s, want %s", p, SlotCountdown)
	}
	if !mgr.Leave("main", b.Seat.AgentID) {
		t.Fatal("leave should succeed")
	}
	if p := slotPhase(t, mgr, "main"); p != SlotLobby {
		t.Fatalf("phase after leave = %s, want %s", p, SlotLobby)
	}
	// the stale countdown timer must not start the match
	time.Sleep(700 * time.Millisecond)
	if p := slotPhase(t, mgr, "main"); p != SlotLobby {
		t.Fatalf("phase after stale timer = %s, want %s", p, SlotLobby)
	}
}

func TestCountdownClampedToFloor(t *testing.T) {
	spec := fastSpec()
	spec.CountdownMs = 5
	spec.MinCountdownMs = 100
	if d := spec.Countdown(); d != 100*time.Millisecond {
		t.Fatalf("countdown = %s, want 100ms", d)
	}
}

func TestJoinDeniedWhileActive(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	mustJoinSlot(t, mgr, "main", "a", "cred-a")
	mustJoinSlot(t, mgr, "main", "b", "cred-b")
	waitFor(t, "match start", func() bool { return slotPhase(t, mgr, "main") == SlotActive })
	_, code := mgr.Join("main", "late", "", "cred-late", nil)
	if code != protocol.ErrNotInLobby {
		t.Fatalf("late join code = %q, want %s", code, protocol.ErrNotInLobby)
	}
}

func TestJoinUnknownSlot(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	if _, code := mgr.Join("nope", "a", "", "cred-a", nil); code != protocol.ErrSlotNotFound {
		t.Fatalf("code = %q, want %s", code, protocol.ErrSlotNotFound)
	}
}

type captureStore struct {
	mu       sync.Mutex
	sums     []match.Summary
	rankings [][]match.RankedResult
}

func (c *captureStore) RecordMatch(sum match.Summary, ranking []match.RankedResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sums = append(c.sums, sum)
	c.rankings = append(c.rankings, ranking)
	return nil
}

func (c *captureStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sums)
}

func TestForceStopFlowsThroughResultsToFreshLobby(t *testing.T) {
	store := &captureStore{}
	mgr := newTestManager(t, nil, Options{Store: store})
	mustJoinSlot(t, mgr, "main", "a", "cred-a")
	mustJoinSlot(t, mgr, "main", "b", "cred-b")
	waitFor(t, "match start", func() bool { return slotPhase(t, mgr, "main") == SlotActive })

	first, _ := mgr.SlotState("main")
	if err := mgr.ForceStop("main"); err != nil {
		t.Fatalf("force stop: %v", err)
	}
	waitFor(t, "fresh lobby", func() bool {
		st, _ := mgr.SlotState("main")
		return st.Phase == SlotLobby && st.MatchID != first.MatchID
	})
	waitFor(t, "stored result", func() bool { return store.count() == 1 })

	store.mu.Lock()
	defer store.mu.Unlock()
	sum := store.sums[0]
	if sum.MatchID != first.MatchID {
		t.Fatalf("stored match = %s, want %s", sum.MatchID, first.MatchID)
	}
	if sum.Reason != match.ReasonStopped {
		t.Fatalf("reason = %s, want %s", sum.Reason, match.ReasonStopped)
	}
	if len(store.rankings[0]) != 2 {
		t.Fatalf("ranking rows = %d, want 2", len(store.rankings[0]))
	}

	hist := mgr.History("main")
	if len(hist) != 1 || hist[0].MatchID != first.MatchID {
		t.Fatalf("history = %+v, want the finished match", hist)
	}

	// the recycled slot accepts a fresh pair and counts from zero
	res := mustJoinSlot(t, mgr, "main", "c", "cred-c")
	if res.Seated != 1 {
		t.Fatalf("seated in fresh lobby = %d, want 1", res.Seated)
	}
}

func TestForceStartSkipsCountdown(t *testing.T) {
	mgr := newTestManager(t, func(s *SlotSpec) {
		s.CountdownMs = 60_000
		s.MinCountdownMs = 60_000
	}, Options{})
	mustJoinSlot(t, mgr, "main", "a", "cred-a")
	mustJoinSlot(t, mgr, "main", "b", "cred-b")
	if err := mgr.ForceStart("main"); err != nil {
		t.Fatalf("force start: %v", err)
	}
	waitFor(t, "match start", func() bool { return slotPhase(t, mgr, "main") == SlotActive })
	if err := mgr.ForceStart("main"); err == nil {
		t.Fatal("force start on active slot should fail")
	}
}

type stubPilot struct{}

func (stubPilot) Decide(*protocol.StateMsg) (float64, bool) { return 0, false }

func TestFillTopsUpWaitingLobby(t *testing.T) {
	mgr := newTestManager(t, func(s *SlotSpec) {
		s.Fill = FillSpec{Enabled: true, Target: 3, DelayMs: 30, Names: []string{"ada", "ben"}}
	}, Options{
		FillPilot: func(protocol.ArenaParams, int64) Pilot { return stubPilot{} },
	})
	mustJoinSlot(t, mgr, "main", "solo", "cred-a")
	waitFor(t, "fill to target", func() bool {
		st, _ := mgr.SlotState("main")
		return st.Seated == 3
	})
	// fill crossing two seats arms the countdown
	waitFor(t, "countdown or start", func() bool {
		p := slotPhase(t, mgr, "main")
		return p == SlotCountdown || p == SlotActive
	})
}

func TestManifestListsSlots(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	infos := mgr.Manifest()
	if len(infos) != 1 {
		t.Fatalf("manifest slots = %d, want 1", len(infos))
	}
	info := infos[0]
	if info.ID != "main" || info.Phase != string(SlotLobby) || info.Capacity != 8 {
		t.Fatalf("unexpected manifest entry: %+v", info)
	}
	if info.TickRateHz != tuning.Default().TickRateHz {
		t.Fatalf("tick rate = %d", info.TickRateHz)
	}
}

func TestSteerUnknownSlot(t *testing.T) {
	mgr := newTestManager(t, nil, Options{})
	angle := 90.0
	if code := mgr.Steer("nope", match.SteerEnvelope{AgentID: "x", AngleDeg: &angle}); code != protocol.ErrSlotNotFound {
		t.Fatalf("code = %q, want %s", code, protocol.ErrSlotNotFound)
	}
}

func mustJoinSlot(t *testing.T, mgr *Manager, slotID, name, cred string) match.JoinResult {
	t.Helper()
	res, code := mgr.Join(slotID, name, "", cred, nil)
	if code != "" {
		t.Fatalf("join %s/%s: code %q", slotID, name, code)
	}
	return res
}
