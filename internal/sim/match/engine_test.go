package match

import (
	"testing"
	"time"

	"snakepit.gg/internal/sim/geo"
)

func testConfig(id string) Config {
	return Config{
		ID:             id,
		SlotID:         "s1",
		TickRateHz:     20,
		Capacity:       8,
		Seed:           42,
		InitialPellets: 1,
	}
}

func mustMatch(t *testing.T, cfg Config) *Match {
	t.Helper()
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	return m
}

func mustAdmit(t *testing.T, m *Match, name string) string {
	t.Helper()
	res := m.Admit(name, "", name, nil)
	if res.Code != "" || res.Seat == nil {
		t.Fatalf("admit %s: code=%q", name, res.Code)
	}
	return res.Seat.AgentID
}

// clearPellets empties the floor so placement tests control exactly
// what the heads can reach.
func clearPellets(m *Match) {
	for id := range m.pellets {
		delete(m.pellets, id)
	}
}

// parkSnakes moves every named snake onto its own eastbound lane, far
// from the others, so tests that only care about frames or inputs
// never trip over a random spawn collision.
func parkSnakes(m *Match, ids ...string) {
	for i, id := range ids {
		s := m.snakes[id]
		x := 300 + float64(i)*400
		s.Segments = []geo.Vec2{{X: x, Y: 300}, {X: x - 2, Y: 300}}
		s.AngleDeg = 0
	}
}

type fakeRecorder struct {
	starts []StartEntry
	ticks  []TickLogEntry
	ends   []Summary
}

func (r *fakeRecorder) WriteStart(e StartEntry) error  { r.starts = append(r.starts, e); return nil }
func (r *fakeRecorder) WriteTick(e TickLogEntry) error { r.ticks = append(r.ticks, e); return nil }
func (r *fakeRecorder) WriteEnd(sum Summary) error     { r.ends = append(r.ends, sum); return nil }

func TestStep_BodyCollisionKillsMoverAndDropsPellets(t *testing.T) {
	m := mustMatch(t, testConfig("m-body"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	if err := m.Begin(60_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)

	// A slides east into B's trailing body; B's head is far away.
	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{{X: 500, Y: 500}, {X: 498, Y: 500}}
	sa.AngleDeg = 0
	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 800, Y: 800}, {X: 801, Y: 800}, {X: 507, Y: 500}}
	sb.AngleDeg = 0

	m.StepOnce(nil, nil)

	if sa.Alive {
		t.Fatalf("mover survived body collision")
	}
	if sa.KilledBy != b || sa.DeathTick != 1 {
		t.Fatalf("kill attribution: killedBy=%q deathTick=%d", sa.KilledBy, sa.DeathTick)
	}
	if !sb.Alive {
		t.Fatalf("body owner died")
	}
	// Zero score drops one pellet per third segment: a 2-segment snake
	// leaves exactly one.
	if got := len(m.pellets); got != 1 {
		t.Fatalf("pellets after death: %d want 1", got)
	}
	if m.Snapshot().Phase != PhaseFinished {
		t.Fatalf("one snake left should finish the match")
	}
}

func TestStep_SelfCollisionSkipsLeadingSegments(t *testing.T) {
	m := mustMatch(t, testConfig("m-self"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	if err := m.Begin(60_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)

	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 1500, Y: 1500}, {X: 1498, Y: 1500}}
	sb.AngleDeg = 0

	// Segment 3 sits on the head's path but is inside the grace run.
	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{
		{X: 500, Y: 500}, {X: 498, Y: 500}, {X: 600, Y: 700},
		{X: 504, Y: 500}, {X: 620, Y: 700}, {X: 640, Y: 700},
	}
	sa.AngleDeg = 0
	m.StepOnce(nil, nil)
	if !sa.Alive {
		t.Fatalf("grace segments should not kill: killedBy=%q", sa.KilledBy)
	}

	// Segment 5 at the same spot is past the grace run and lethal.
	sa.Segments = []geo.Vec2{
		{X: 500, Y: 500}, {X: 498, Y: 500}, {X: 600, Y: 700},
		{X: 620, Y: 700}, {X: 640, Y: 700}, {X: 504, Y: 500},
	}
	sa.AngleDeg = 0
	m.StepOnce(nil, nil)
	if sa.Alive {
		t.Fatalf("self collision past grace run should kill")
	}
	if sa.KilledBy != a {
		t.Fatalf("self kill attribution: killedBy=%q want %q", sa.KilledBy, a)
	}
}

func TestStep_DeadOwnersBodyIsInertSameTick(t *testing.T) {
	m := mustMatch(t, testConfig("m-inert"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	c := mustAdmit(t, m, "cy")
	if err := m.Begin(60_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)

	// A dies on B's body first; C then crosses A's corpse and must
	// pass through unharmed.
	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{{X: 500, Y: 500}, {X: 498, Y: 500}}
	sa.AngleDeg = 0
	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 800, Y: 800}, {X: 801, Y: 800}, {X: 507, Y: 500}}
	sb.AngleDeg = 0
	sc := m.snakes[c]
	sc.Segments = []geo.Vec2{{X: 498, Y: 520}, {X: 498, Y: 524.5}}
	sc.AngleDeg = 270

	m.StepOnce(nil, nil)

	if sa.Alive {
		t.Fatalf("A should die on B's body")
	}
	if !sc.Alive {
		t.Fatalf("C died on a corpse: killedBy=%q", sc.KilledBy)
	}
	if !sb.Alive {
		t.Fatalf("B should survive")
	}
}

func TestStep_HeadToHeadEqualLengthsBothDie(t *testing.T) {
	m := mustMatch(t, testConfig("m-h2h-eq"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	if err := m.Begin(60_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)

	// Heads close to 16 apart, tails angled off the approach axis so
	// only the heads can touch.
	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{{X: 500, Y: 500}, {X: 500, Y: 499}}
	sa.AngleDeg = 0
	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 522, Y: 500}, {X: 522, Y: 501}}
	sb.AngleDeg = 180

	m.StepOnce(nil, nil)

	if sa.Alive || sb.Alive {
		t.Fatalf("equal-length head-to-head should kill both: a=%t b=%t", sa.Alive, sb.Alive)
	}
	if sa.KilledBy != b || sb.KilledBy != a {
		t.Fatalf("mutual attribution: a.killedBy=%q b.killedBy=%q", sa.KilledBy, sb.KilledBy)
	}
	if sa.DeathTick != 1 || sb.DeathTick != 1 {
		t.Fatalf("death ticks: %d %d", sa.DeathTick, sb.DeathTick)
	}

	snap := m.Snapshot()
	if snap.Phase != PhaseFinished {
		t.Fatalf("phase after wipe: %s", snap.Phase)
	}
	if m.endReason != ReasonAllDead {
		t.Fatalf("end reason: %s want %s", m.endReason, ReasonAllDead)
	}
	// Scores tie at zero; the earliest join takes the line.
	if m.winnerID != a {
		t.Fatalf("winner: %q want %q", m.winnerID, a)
	}
}

func TestStep_HeadToHeadLongerSurvivesUnchanged(t *testing.T) {
	m := mustMatch(t, testConfig("m-h2h-len"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	if err := m.Begin(60_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)

	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{{X: 500, Y: 500}, {X: 500, Y: 499}, {X: 500, Y: 480}}
	sa.AngleDeg = 0
	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 522, Y: 500}, {X: 522, Y: 501}}
	sb.AngleDeg = 180

	m.StepOnce(nil, nil)

	if !sa.Alive {
		t.Fatalf("longer snake died: killedBy=%q", sa.KilledBy)
	}
	if sb.Alive {
		t.Fatalf("shorter snake survived")
	}
	if sb.KilledBy != a {
		t.Fatalf("attribution: %q want %q", sb.KilledBy, a)
	}
	// No transfer: the survivor keeps its own score and length.
	if sa.Score != 0 || len(sa.Segments) != 3 {
		t.Fatalf("survivor changed: score=%d segments=%d", sa.Score, len(sa.Segments))
	}
	if m.endReason != ReasonLastSurvivor {
		t.Fatalf("end reason: %s want %s", m.endReason, ReasonLastSurvivor)
	}
}

func TestStep_ConsumptionScoresAndGrows(t *testing.T) {
	m := mustMatch(t, testConfig("m-eat"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	if err := m.Begin(60_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)

	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{{X: 500, Y: 500}, {X: 498, Y: 500}}
	sa.AngleDeg = 0
	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 1500, Y: 1500}, {X: 1498, Y: 1500}}
	sb.AngleDeg = 0

	m.pellets["X1"] = &Pellet{ID: "X1", Pos: geo.Vec2{X: 504, Y: 500}, Value: 5}

	m.StepOnce(nil, nil)

	if sa.Score != 5 {
		t.Fatalf("score after eating: %d want 5", sa.Score)
	}
	if got := len(sa.Segments); got != 3 {
		t.Fatalf("segments after eating: %d want 3", got)
	}
	if m.pellets["X1"] != nil {
		t.Fatalf("eaten pellet still on the floor")
	}
	// The floor is topped back up after consumption.
	if got := len(m.pellets); got != m.cfg.InitialPellets {
		t.Fatalf("floor after refill: %d want %d", got, m.cfg.InitialPellets)
	}
}

func TestStep_TimeUpFinishesWithoutMoving(t *testing.T) {
	m := mustMatch(t, testConfig("m-clock"))
	a := mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")

	base := time.Unix(1_700_000_000, 0)
	now := base
	m.SetClock(func() time.Time { return now })

	if err := m.Begin(5_000); err != nil {
		t.Fatalf("begin: %v", err)
	}
	clearPellets(m)
	sa := m.snakes[a]
	sa.Segments = []geo.Vec2{{X: 500, Y: 500}, {X: 498, Y: 500}}
	sa.AngleDeg = 0
	sb := m.snakes[b]
	sb.Segments = []geo.Vec2{{X: 1500, Y: 1500}, {X: 1498, Y: 1500}}
	sb.AngleDeg = 0

	// One tick inside the window: the match plays.
	now = base.Add(20 * time.Millisecond)
	m.StepOnce(nil, nil)
	if m.Snapshot().Phase != PhaseActive {
		t.Fatalf("finished inside the window")
	}

	// Exactly at the scheduled end: the tick aborts before movement.
	headBefore := sa.Head()
	now = base.Add(5 * time.Second)
	tick, digest := m.StepOnce(nil, nil)
	if digest != "" {
		t.Fatalf("aborted tick produced a digest")
	}
	if tick != 2 {
		t.Fatalf("tick: %d want 2", tick)
	}
	if m.endReason != ReasonTimeUp {
		t.Fatalf("end reason: %s want %s", m.endReason, ReasonTimeUp)
	}
	if sa.Head() != headBefore {
		t.Fatalf("snake moved on the aborted tick")
	}
}

func TestComputeWinner_TieGoesToEarliestJoin(t *testing.T) {
	entrants := []EntrantResult{
		{AgentID: "S1", Score: 40},
		{AgentID: "S2", Score: 40},
		{AgentID: "S3", Score: 12},
	}
	if got := ComputeWinner(entrants); got != "S1" {
		t.Fatalf("winner: %q want S1", got)
	}
	entrants[1].Score = 41
	if got := ComputeWinner(entrants); got != "S2" {
		t.Fatalf("winner: %q want S2", got)
	}
	if got := ComputeWinner(nil); got != "" {
		t.Fatalf("winner of empty field: %q", got)
	}
}

func TestDeterminism_SameSeedSameInputsSameDigests(t *testing.T) {
	cfg := testConfig("m-det")
	cfg.InitialPellets = 120

	m1 := mustMatch(t, cfg)
	m2 := mustMatch(t, cfg)

	for _, name := range []string{"ava", "bo", "cy"} {
		id1 := mustAdmit(t, m1, name)
		id2 := mustAdmit(t, m2, name)
		if id1 != id2 {
			t.Fatalf("agent id mismatch: %s vs %s", id1, id2)
		}
	}
	if err := m1.Begin(600_000); err != nil {
		t.Fatalf("begin m1: %v", err)
	}
	if err := m2.Begin(600_000); err != nil {
		t.Fatalf("begin m2: %v", err)
	}

	delta := 35.0
	abs := 270.0
	for tick := 1; tick <= 50; tick++ {
		var steers []RecordedSteer
		switch tick {
		case 5:
			steers = []RecordedSteer{{AgentID: "S1", DeltaDeg: &delta}}
		case 20:
			steers = []RecordedSteer{{AgentID: "S2", AngleDeg: &abs}}
		}
		_, d1 := m1.StepOnce(nil, steers)
		_, d2 := m2.StepOnce(nil, steers)
		if d1 != d2 {
			t.Fatalf("digest mismatch at tick %d: %s vs %s", tick, d1, d2)
		}
		if d1 == "" {
			t.Fatalf("empty digest at tick %d", tick)
		}
	}
}

func TestJournal_RecordsAndReplaysToSameDigests(t *testing.T) {
	cfg := testConfig("m-journal")
	cfg.InitialPellets = 40

	rec := &fakeRecorder{}
	m := mustMatch(t, cfg)
	m.AddRecorder(rec)

	var ended []Summary
	m.SetOnEnd(func(sum Summary) { ended = append(ended, sum) })

	mustAdmit(t, m, "ava")
	b := mustAdmit(t, m, "bo")
	mustAdmit(t, m, "cy")
	if err := m.Begin(600_000); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if len(rec.starts) != 1 {
		t.Fatalf("start entries: %d", len(rec.starts))
	}
	start := rec.starts[0]
	if start.ConfigDigest == "" || len(start.Lobby) != 3 {
		t.Fatalf("start entry: digest=%q lobby=%d", start.ConfigDigest, len(start.Lobby))
	}

	delta := -60.0
	m.StepOnce(nil, nil)
	m.StepOnce(nil, []RecordedSteer{{AgentID: "S1", DeltaDeg: &delta}})
	m.StepOnce([]string{b}, nil)
	m.handleControl(ControlRequest{Kind: ControlStop})

	if len(rec.ticks) != 3 {
		t.Fatalf("tick entries: %d want 3", len(rec.ticks))
	}
	if len(rec.ticks[2].Leaves) != 1 || rec.ticks[2].Leaves[0] != b {
		t.Fatalf("leave not journaled: %+v", rec.ticks[2].Leaves)
	}
	if len(rec.ends) != 1 || rec.ends[0].Reason != ReasonStopped {
		t.Fatalf("end entry: %+v", rec.ends)
	}
	if len(ended) != 1 {
		t.Fatalf("onEnd calls: %d", len(ended))
	}
	if m.snakes[b].Alive || m.snakes[b].KilledBy != "" {
		t.Fatalf("leaver state: alive=%t killedBy=%q", m.snakes[b].Alive, m.snakes[b].KilledBy)
	}

	// Replay from the journal alone: same config, same lobby order,
	// same per-tick inputs, same digests.
	r := mustMatch(t, start.Config)
	r.SetClock(func() time.Time { return start.StartedAt })
	for _, ev := range start.Lobby {
		switch ev.Kind {
		case "join":
			res := r.Admit(ev.Name, ev.SkinID, ev.Credential, nil)
			if res.Code != "" || res.Seat.AgentID != ev.AgentID {
				t.Fatalf("replay admit %s: code=%q id=%q", ev.AgentID, res.Code, res.Seat.AgentID)
			}
		case "leave":
			r.Drop(ev.AgentID)
		}
	}
	if err := r.Begin(start.DurationMs); err != nil {
		t.Fatalf("replay begin: %v", err)
	}
	for _, e := range rec.ticks {
		tick, digest := r.StepOnce(e.Leaves, e.Steers)
		if tick != e.Tick {
			t.Fatalf("replay tick %d want %d", tick, e.Tick)
		}
		if digest != e.Digest {
			t.Fatalf("replay digest mismatch at tick %d", e.Tick)
		}
	}
}

func TestStepOnce_NoOpOutsideActivePhase(t *testing.T) {
	m := mustMatch(t, testConfig("m-idle"))
	mustAdmit(t, m, "ava")

	tick, digest := m.StepOnce(nil, nil)
	if tick != 0 || digest != "" {
		t.Fatalf("lobby step: tick=%d digest=%q", tick, digest)
	}
	if m.Snapshot().Phase != PhaseLobby {
		t.Fatalf("phase changed: %s", m.Snapshot().Phase)
	}
}
