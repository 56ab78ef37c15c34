package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"snakepit.gg/internal/protocol"
	"snakepit.gg/internal/sim/geo"
)

// JoinRequest asks for a lobby seat. Resp must be buffered; Out, when
// set, receives every wire frame addressed to the seat.
type JoinRequest struct {
	Name       string
	SkinID     string
	Credential string
	Out        chan []byte
	Resp       chan JoinResult
}

// JoinResult is the admission outcome. A duplicate credential comes
// back with the existing seat and ErrSeatTaken so reconnect storms stay
// quiet; every other rejection has a nil seat.
type JoinResult struct {
	Seat   *Seat
	Code   string
	Seated int
}

type Seat struct {
	AgentID string
	MatchID string
	SlotID  string
	Name    string
	SkinID  string
	Color   string
	Arena   protocol.ArenaParams
}

// LeaveRequest frees a lobby seat or, mid-match, retires the snake.
// Resp is optional.
type LeaveRequest struct {
	AgentID string
	Resp    chan LeaveResult
}

type LeaveResult struct {
	Existed bool
	Seated  int
	Phase   Phase
}

// SteerEnvelope carries one steering intent into the loop. The result
// is acknowledged on the seat's Out channel.
type SteerEnvelope struct {
	AgentID  string
	Ref      string
	AngleDeg *float64
	DeltaDeg *float64
}

type ControlKind string

const (
	ControlStart ControlKind = "START"
	ControlStop  ControlKind = "STOP"
)

// ControlRequest starts or stops the simulation. Resp is optional.
type ControlRequest struct {
	Kind       ControlKind
	DurationMs int64
	Reason     EndReason
	Resp       chan error
}

// Match is a single-threaded authoritative arena simulation.
// All mutable state must be accessed only from the match loop goroutine;
// everything else talks to it over the channels or reads the published
// snapshot.
type Match struct {
	cfg Config
	log *log.Logger
	rng *rand.Rand
	now func() time.Time

	phase Phase
	tick  atomic.Uint64

	snakes  map[string]*Snake
	order   []string          // agent ids in join order
	seats   map[string]string // credential -> agent id
	pellets map[string]*Pellet

	grid      *geo.Grid
	bodyBuf   []geo.BodyRef
	pelletBuf []geo.PelletRef
	consumed  map[string]bool

	everSpawned bool
	startedAt   time.Time
	endAt       time.Time
	durationMs  int64
	endReason   EndReason
	winnerID    string

	nextAgentNum  uint64
	nextPelletNum uint64
	colorIdx      int

	observers map[string]*observerSession
	recorders []Recorder
	onEnd     func(Summary)
	ranker    Ranker

	lobbyEvents   []LobbyEvent
	pendingLeaves []string
	pendingSteers []RecordedSteer
	steerRefs     []string
	deathsBuf     []RecordedDeath

	joinsTotal    uint64
	deniedTotal   uint64
	killsTotal    uint64
	pelletsEaten  uint64
	framesDropped uint64
	lastStepUs    int64

	joins     chan JoinRequest
	leaves    chan LeaveRequest
	inbox     chan SteerEnvelope
	control   chan ControlRequest
	obsJoins  chan ObserverJoinRequest
	obsLeaves chan string
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	doneOnce  sync.Once

	ticker *time.Ticker

	published atomic.Value
	metricsV  atomic.Value
	stats     *Stats
}

func New(cfg Config) (*Match, error) {
	cfg.applyDefaults()
	if cfg.ID == "" {
		return nil, errors.New("match: empty id")
	}
	if cfg.ArenaWidth <= 2*cfg.WallMargin || cfg.ArenaHeight <= 2*cfg.WallMargin {
		return nil, fmt.Errorf("match %s: arena %.0fx%.0f too small for wall margin %.0f",
			cfg.ID, cfg.ArenaWidth, cfg.ArenaHeight, cfg.WallMargin)
	}

	m := &Match{
		cfg:       cfg,
		log:       log.New(os.Stdout, "[match] ", log.LstdFlags|log.Lmicroseconds),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		now:       time.Now,
		phase:     PhaseLobby,
		snakes:    make(map[string]*Snake),
		seats:     make(map[string]string),
		pellets:   make(map[string]*Pellet),
		grid:      geo.NewGrid(cfg.GridCellSize),
		consumed:  make(map[string]bool),
		observers: make(map[string]*observerSession),
		joins:     make(chan JoinRequest, 64),
		leaves:    make(chan LeaveRequest, 64),
		inbox:     make(chan SteerEnvelope, 1024),
		control:   make(chan ControlRequest, 8),
		obsJoins:  make(chan ObserverJoinRequest, 64),
		obsLeaves: make(chan string, 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		stats:     NewStats(uint64(cfg.TickRateHz)*10, uint64(cfg.TickRateHz)*60),
	}
	m.ticker = time.NewTicker(time.Hour)
	m.ticker.Stop()
	m.publishSnapshot(0, m.now())
	m.publishMetrics(0)
	return m, nil
}

// SetLogger, SetClock, SetRanker, SetOnEnd and AddRecorder wire the
// match into its surroundings. None of them are safe once Run is live.

func (m *Match) SetLogger(l *log.Logger) {
	if l != nil {
		m.log = l
	}
}

func (m *Match) SetClock(fn func() time.Time) {
	if fn != nil {
		m.now = fn
	}
}

func (m *Match) SetRanker(r Ranker) { m.ranker = r }

func (m *Match) SetOnEnd(fn func(Summary)) { m.onEnd = fn }

func (m *Match) AddRecorder(r Recorder) {
	if r != nil {
		m.recorders = append(m.recorders, r)
	}
}

func (m *Match) ID() string { return m.cfg.ID }

func (m *Match) SlotID() string { return m.cfg.SlotID }

func (m *Match) Config() Config { return m.cfg }

func (m *Match) CurrentTick() uint64 { return m.tick.Load() }

// Done is closed when the loop has exited; channel senders must select
// against it or they block forever on a dead match.
func (m *Match) Done() <-chan struct{} { return m.done }

func (m *Match) Join() chan<- JoinRequest { return m.joins }

func (m *Match) Leave() chan<- LeaveRequest { return m.leaves }

func (m *Match) Inbox() chan<- SteerEnvelope { return m.inbox }

func (m *Match) Control() chan<- ControlRequest { return m.control }

func (m *Match) ObserverJoin() chan<- ObserverJoinRequest { return m.obsJoins }

func (m *Match) ObserverLeave() chan<- string { return m.obsLeaves }

// Stop asks the loop to exit. Safe to call more than once.
func (m *Match) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Run owns the match until its context dies or Stop is called. The
// ticker fires only while the match is active; every other event is
// applied between ticks.
func (m *Match) Run(ctx context.Context) error {
	defer m.ticker.Stop()
	defer m.doneOnce.Do(func() { close(m.done) })

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case <-m.stop:
			m.shutdown()
			return nil
		case req := <-m.joins:
			m.handleJoin(req)
		case req := <-m.leaves:
			m.handleLeave(req)
		case env := <-m.inbox:
			m.handleSteer(env)
		case req := <-m.control:
			m.handleControl(req)
		case req := <-m.obsJoins:
			m.handleObserverJoin(req)
		case sid := <-m.obsLeaves:
			m.removeObserver(sid)
		case <-m.ticker.C:
			m.step(m.now())
		}
	}
}

// shutdown finishes an in-flight match so sinks still get a terminal
// record when the process is going down.
func (m *Match) shutdown() {
	m.ticker.Stop()
	if m.phase == PhaseActive {
		nowTick := m.tick.Load()
		m.markFinished(nowTick, ReasonStopped)
		m.finalizeFinish(nowTick, m.now())
	}
}

func (m *Match) handleJoin(req JoinRequest) {
	res := m.Admit(req.Name, req.SkinID, req.Credential, req.Out)
	if req.Resp != nil {
		req.Resp <- res
	}
}

// Admit seats one entrant. Loop-internal; exported for tests and
// journal replay, where no loop goroutine is running.
func (m *Match) Admit(name, skin, credential string, out chan []byte) JoinResult {
	if m.phase != PhaseLobby {
		m.denied()
		return JoinResult{Code: protocol.ErrNotInLobby, Seated: len(m.order)}
	}
	if credential == "" {
		credential = name
	}
	if prev, ok := m.seats[credential]; ok {
		m.denied()
		return JoinResult{Seat: m.seatFor(m.snakes[prev]), Code: protocol.ErrSeatTaken, Seated: len(m.order)}
	}
	if len(m.order) >= m.cfg.Capacity {
		m.denied()
		return JoinResult{Code: protocol.ErrLobbyFull, Seated: len(m.order)}
	}

	m.nextAgentNum++
	id := fmt.Sprintf("S%d", m.nextAgentNum)
	color := palette[m.colorIdx%len(palette)]
	m.colorIdx++
	pos := spawnPoint(&m.cfg, m.rng)
	angle := m.rng.Float64() * 360

	s := &Snake{
		ID:         id,
		Name:       name,
		SkinID:     skin,
		Credential: credential,
		Color:      color,
		JoinSeq:    int(m.nextAgentNum),
		Segments:   layoutSegments(&m.cfg, pos, angle),
		AngleDeg:   angle,
		Speed:      m.cfg.SnakeSpeed,
		Alive:      true,
		out:        out,
	}
	m.snakes[id] = s
	m.order = append(m.order, id)
	m.seats[credential] = id
	m.everSpawned = true
	m.joinsTotal++
	m.lobbyEvents = append(m.lobbyEvents, LobbyEvent{
		Kind: "join", AgentID: id, Name: name, SkinID: skin, Credential: credential,
	})
	m.publishSnapshot(m.tick.Load(), m.now())
	m.publishMetrics(m.tick.Load())
	m.log.Printf("match=%s join agent=%s name=%q seated=%d/%d", m.cfg.ID, id, name, len(m.order), m.cfg.Capacity)
	return JoinResult{Seat: m.seatFor(s), Seated: len(m.order)}
}

func (m *Match) seatFor(s *Snake) *Seat {
	if s == nil {
		return nil
	}
	return &Seat{
		AgentID: s.ID,
		MatchID: m.cfg.ID,
		SlotID:  m.cfg.SlotID,
		Name:    s.Name,
		SkinID:  s.SkinID,
		Color:   s.Color,
		Arena:   m.ArenaParams(),
	}
}

func (m *Match) handleLeave(req LeaveRequest) {
	existed := m.Drop(req.AgentID)
	if req.Resp != nil {
		req.Resp <- LeaveResult{Existed: existed, Seated: len(m.order), Phase: m.phase}
	}
}

// Drop removes a lobby seat immediately; mid-match it queues the
// departure for the next tick boundary, where the snake is retired and
// converted to pellets. Exported for tests and replay.
func (m *Match) Drop(agentID string) bool {
	s := m.snakes[agentID]
	if s == nil {
		return false
	}
	switch m.phase {
	case PhaseLobby:
		delete(m.snakes, agentID)
		delete(m.seats, s.Credential)
		for i, id := range m.order {
			if id == agentID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		m.lobbyEvents = append(m.lobbyEvents, LobbyEvent{Kind: "leave", AgentID: agentID})
		m.publishSnapshot(m.tick.Load(), m.now())
		m.publishMetrics(m.tick.Load())
		m.log.Printf("match=%s lobby leave agent=%s seated=%d", m.cfg.ID, agentID, len(m.order))
	case PhaseActive:
		s.out = nil
		m.pendingLeaves = append(m.pendingLeaves, agentID)
	default:
		s.out = nil
	}
	return true
}

func (m *Match) handleSteer(env SteerEnvelope) {
	if m.phase != PhaseActive {
		m.sendAck(m.snakes[env.AgentID], env.Ref, m.tick.Load(), protocol.ErrMatchInactive, nil)
		return
	}
	m.pendingSteers = append(m.pendingSteers, RecordedSteer{
		AgentID: env.AgentID, AngleDeg: env.AngleDeg, DeltaDeg: env.DeltaDeg,
	})
	m.steerRefs = append(m.steerRefs, env.Ref)
}

func (m *Match) handleControl(req ControlRequest) {
	var err error
	switch req.Kind {
	case ControlStart:
		err = m.Begin(req.DurationMs)
	case ControlStop:
		// Tick source dies before any terminal state is written.
		m.ticker.Stop()
		if m.phase == PhaseFinished {
			break
		}
		reason := req.Reason
		if reason == "" {
			reason = ReasonStopped
		}
		nowTick := m.tick.Load()
		m.markFinished(nowTick, reason)
		m.finalizeFinish(nowTick, m.now())
	default:
		err = fmt.Errorf("match %s: unknown control %q", m.cfg.ID, req.Kind)
	}
	if req.Resp != nil {
		req.Resp <- err
	}
}

// Begin moves LOBBY -> ACTIVE: scheduled end set, every seated snake
// already laid out, floor seeded, journal start entry written.
// Exported for tests and replay.
func (m *Match) Begin(durationMs int64) error {
	if m.phase != PhaseLobby {
		return fmt.Errorf("match %s: start in phase %s", m.cfg.ID, m.phase)
	}
	if durationMs <= 0 {
		durationMs = 180_000
	}
	now := m.now()
	m.phase = PhaseActive
	m.startedAt = now
	m.durationMs = durationMs
	m.endAt = now.Add(time.Duration(durationMs) * time.Millisecond)
	m.spawnInitialPellets()

	start := StartEntry{
		MatchID:      m.cfg.ID,
		SlotID:       m.cfg.SlotID,
		Config:       m.cfg,
		ConfigDigest: ConfigDigest(m.cfg),
		StartedAt:    now,
		DurationMs:   durationMs,
		Lobby:        append([]LobbyEvent(nil), m.lobbyEvents...),
	}
	for _, r := range m.recorders {
		if err := r.WriteStart(start); err != nil {
			m.log.Printf("match=%s journal start: %v", m.cfg.ID, err)
		}
	}

	m.ticker.Reset(time.Second / time.Duration(m.cfg.TickRateHz))
	m.publishSnapshot(m.tick.Load(), now)
	m.log.Printf("match=%s slot=%s start entrants=%d duration_ms=%d", m.cfg.ID, m.cfg.SlotID, len(m.order), durationMs)
	return nil
}

// StepOnce runs exactly one tick with the given queued inputs and
// returns the tick number and state digest. For deterministic tests
// and journal replay; must not race a live Run loop.
func (m *Match) StepOnce(leaves []string, steers []RecordedSteer) (uint64, string) {
	m.pendingLeaves = append(m.pendingLeaves, leaves...)
	m.pendingSteers = append(m.pendingSteers, steers...)
	return m.step(m.now())
}

func (m *Match) resetPending() {
	m.pendingLeaves = m.pendingLeaves[:0]
	m.pendingSteers = m.pendingSteers[:0]
	m.steerRefs = m.steerRefs[:0]
}

// step is one full tick. Order is fixed: advance counter, wall-clock
// end check, queued departures and steers, movement and wrap, grid
// rebuild, per-snake body collision or consumption, head-to-head
// resolution, pellet cleanup and replenish, early termination, publish.
func (m *Match) step(now time.Time) (uint64, string) {
	if m.phase != PhaseActive {
		m.resetPending()
		return m.tick.Load(), ""
	}
	stepStart := time.Now()
	nowTick := m.tick.Add(1)

	if !now.Before(m.endAt) {
		// Scheduled end. Inputs queued after the last playable tick
		// are discarded with the match.
		m.markFinished(nowTick, ReasonTimeUp)
		m.finalizeFinish(nowTick, now)
		m.resetPending()
		return nowTick, ""
	}

	m.deathsBuf = m.deathsBuf[:0]

	leaves := m.pendingLeaves
	steers := m.pendingSteers
	refs := m.steerRefs

	for _, id := range leaves {
		if s := m.snakes[id]; s != nil && s.Alive {
			m.killSnake(s, "", nowTick)
			m.log.Printf("match=%s retire agent=%s tick=%d", m.cfg.ID, id, nowTick)
		}
	}
	for i, st := range steers {
		ref := ""
		if i < len(refs) {
			ref = refs[i]
		}
		m.applySteer(st, ref, nowTick)
	}

	// Movement and wrap, join order.
	for _, id := range m.order {
		if s := m.snakes[id]; s.Alive {
			s.Advance(&m.cfg)
		}
	}

	// Spatial grid rebuild: alive bodies (heads excluded) and pellets.
	m.grid.Reset()
	for _, id := range m.order {
		s := m.snakes[id]
		if !s.Alive {
			continue
		}
		for i := 1; i < len(s.Segments); i++ {
			m.grid.InsertSegment(id, i, s.Segments[i])
		}
	}
	for pid, p := range m.pellets {
		m.grid.InsertPellet(pid, p.Pos)
	}

	// Body collisions kill the mover; survivors eat.
	for _, id := range m.order {
		s := m.snakes[id]
		if !s.Alive {
			continue
		}
		head := s.Head()
		killer := ""
		m.bodyBuf = m.grid.BodiesWithin(m.bodyBuf[:0], head, m.cfg.HeadRadius, m.cfg.BodyRadius)
		for _, ref := range m.bodyBuf {
			if ref.SnakeID == id && ref.Index < m.cfg.SelfSkipSegments {
				continue
			}
			owner := m.snakes[ref.SnakeID]
			if owner == nil || !owner.Alive {
				continue
			}
			killer = ref.SnakeID
			break
		}
		if killer != "" {
			m.killSnake(s, killer, nowTick)
			continue
		}

		m.pelletBuf = m.grid.PelletsWithin(m.pelletBuf[:0], head, m.cfg.HeadRadius, m.cfg.PelletRadius)
		for _, pr := range m.pelletBuf {
			if m.consumed[pr.ID] {
				continue
			}
			p := m.pellets[pr.ID]
			if p == nil {
				continue
			}
			m.consumed[pr.ID] = true
			s.Score += p.Value
			s.Grow(1)
			m.pelletsEaten++
			m.stats.RecordPelletEaten(nowTick)
		}
	}

	// Head-to-head over snakes still alive after the body pass. Equal
	// lengths kill both; otherwise the longer survives unchanged.
	for i := 0; i < len(m.order); i++ {
		a := m.snakes[m.order[i]]
		if !a.Alive {
			continue
		}
		for j := i + 1; j < len(m.order); j++ {
			b := m.snakes[m.order[j]]
			if !b.Alive {
				continue
			}
			if !geo.CirclesCollide(a.Head(), m.cfg.HeadRadius, b.Head(), m.cfg.HeadRadius) {
				continue
			}
			la, lb := len(a.Segments), len(b.Segments)
			switch {
			case la == lb:
				m.killSnake(a, b.ID, nowTick)
				m.killSnake(b, a.ID, nowTick)
			case la > lb:
				m.killSnake(b, a.ID, nowTick)
			default:
				m.killSnake(a, b.ID, nowTick)
			}
			if !a.Alive {
				break
			}
		}
	}

	// Deferred pellet removal, then top the floor back up.
	for pid := range m.consumed {
		delete(m.pellets, pid)
		delete(m.consumed, pid)
	}
	m.maintainPellets()

	// Early termination overrides remaining scheduled time.
	alive := 0
	for _, id := range m.order {
		if m.snakes[id].Alive {
			alive++
		}
	}
	switch {
	case m.everSpawned && alive == 0:
		m.markFinished(nowTick, ReasonAllDead)
	case alive == 1:
		m.markFinished(nowTick, ReasonLastSurvivor)
	}

	digest := m.stateDigest(nowTick)
	entry := TickLogEntry{
		Tick:   nowTick,
		Leaves: append([]string(nil), leaves...),
		Steers: append([]RecordedSteer(nil), steers...),
		Deaths: append([]RecordedDeath(nil), m.deathsBuf...),
		Digest: digest,
	}
	for _, r := range m.recorders {
		if err := r.WriteTick(entry); err != nil {
			m.log.Printf("match=%s journal tick=%d: %v", m.cfg.ID, nowTick, err)
		}
	}

	if m.phase == PhaseFinished {
		m.finalizeFinish(nowTick, now)
	} else {
		snap := m.publishSnapshot(nowTick, now)
		m.broadcastState(snap)
		m.broadcastObservers(nowTick, snap)
	}

	m.lastStepUs = time.Since(stepStart).Microseconds()
	m.publishMetrics(nowTick)
	m.resetPending()
	return nowTick, digest
}

func (m *Match) applySteer(st RecordedSteer, ref string, nowTick uint64) {
	s := m.snakes[st.AgentID]
	switch {
	case s == nil:
		// Nothing to acknowledge to.
	case !s.Alive:
		m.sendAck(s, ref, nowTick, protocol.ErrPlayerDead, nil)
	case st.AngleDeg == nil && st.DeltaDeg == nil:
		m.sendAck(s, ref, nowTick, protocol.ErrBadRequest, nil)
	default:
		na := s.Steer(st.AngleDeg, st.DeltaDeg)
		m.stats.RecordSteer(nowTick)
		m.sendAck(s, ref, nowTick, "", &na)
	}
}

func (m *Match) denied() {
	m.deniedTotal++
	m.stats.RecordDenied(m.tick.Load())
}

func (m *Match) allocPelletID() string {
	m.nextPelletNum++
	return fmt.Sprintf("P%d", m.nextPelletNum)
}

// killSnake retires a snake and converts its value to pellets in one
// motion. Irreversible.
func (m *Match) killSnake(s *Snake, killer string, tick uint64) {
	if !s.Alive {
		return
	}
	s.Kill(killer, tick)
	drops := DropPellets(s, &m.cfg, m.rng, m.allocPelletID)
	for i := range drops {
		p := drops[i]
		m.pellets[p.ID] = &p
	}
	m.deathsBuf = append(m.deathsBuf, RecordedDeath{AgentID: s.ID, KilledBy: killer, Tick: tick})
	m.stats.RecordDeath(tick)
	if killer != "" {
		m.killsTotal++
	}
	m.log.Printf("match=%s death agent=%s killer=%s tick=%d score=%d drops=%d",
		m.cfg.ID, s.ID, killer, tick, s.Score, len(drops))
}

// markFinished mutates terminal simulation state only; everything with
// side effects outside the sim happens in finalizeFinish, after the
// tick entry is on disk.
func (m *Match) markFinished(nowTick uint64, reason EndReason) {
	m.phase = PhaseFinished
	m.endReason = reason
	m.winnerID = ComputeWinner(m.entrantResults(nowTick))
}

func (m *Match) entrantResults(finalTick uint64) []EntrantResult {
	out := make([]EntrantResult, 0, len(m.order))
	for _, id := range m.order {
		s := m.snakes[id]
		survival := finalTick
		if !s.Alive {
			survival = s.DeathTick
		}
		out = append(out, EntrantResult{
			AgentID:       s.ID,
			Name:          s.Name,
			Color:         s.Color,
			SkinID:        s.SkinID,
			Credential:    s.Credential,
			JoinSeq:       s.JoinSeq,
			Score:         s.Score,
			Segments:      len(s.Segments),
			Alive:         s.Alive,
			KilledBy:      s.KilledBy,
			DeathTick:     s.DeathTick,
			SurvivalTicks: survival,
		})
	}
	return out
}

func (m *Match) buildSummary(nowTick uint64, now time.Time) Summary {
	return Summary{
		MatchID:       m.cfg.ID,
		SlotID:        m.cfg.SlotID,
		StartedAt:     m.startedAt,
		EndedAt:       now,
		TickRateHz:    m.cfg.TickRateHz,
		DurationTicks: nowTick,
		Reason:        m.endReason,
		WinnerID:      m.winnerID,
		Entrants:      m.entrantResults(nowTick),
	}
}

func (m *Match) finalizeFinish(nowTick uint64, now time.Time) {
	m.ticker.Stop()
	sum := m.buildSummary(nowTick, now)
	ranking := sum.rankWith(m.ranker)

	snap := m.publishSnapshot(nowTick, now)
	m.broadcastState(snap)
	for _, o := range m.observers {
		if frame := m.observerFrame(snap, o.includePellets); frame != nil {
			m.sendLatest(o.out, frame)
		}
	}
	m.broadcastResult(sum, ranking)

	for _, r := range m.recorders {
		if err := r.WriteEnd(sum); err != nil {
			m.log.Printf("match=%s journal end: %v", m.cfg.ID, err)
		}
	}
	m.publishMetrics(nowTick)
	m.log.Printf("match=%s finished reason=%s winner=%s ticks=%d entrants=%d",
		m.cfg.ID, sum.Reason, sum.WinnerID, sum.DurationTicks, len(sum.Entrants))
	if m.onEnd != nil {
		m.onEnd(sum)
	}
}

func (sum Summary) rankWith(r Ranker) []RankedResult {
	if r != nil {
		return r(sum)
	}
	return defaultRanking(sum)
}
