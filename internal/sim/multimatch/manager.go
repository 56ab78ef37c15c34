package multimatch

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"snakepit.gg/internal/observerproto"
	"snakepit.gg/internal/protocol"
	"snakepit.gg/internal/sim/match"
	"snakepit.gg/internal/sim/tuning"
)

// SlotPhase is the manager-level lifecycle of one arena slot. The
// engine only knows LOBBY/ACTIVE/FINISHED; countdown and results are
// manager states layered on top.
type SlotPhase string

const (
	SlotLobby     SlotPhase = "LOBBY"
	SlotCountdown SlotPhase = "COUNTDOWN"
	SlotActive    SlotPhase = "ACTIVE"
	SlotResults   SlotPhase = "RESULTS"
)

const matchRequestTimeout = 3 * time.Second

// ResultStore persists a finished match. Implementations queue
// internally; a failed write must never reach back into the sim.
type ResultStore interface {
	RecordMatch(sum match.Summary, ranking []match.RankedResult) error
}

// Settler mirrors match lifecycle onto the external wager pool. Both
// calls are issued from manager goroutines, never from a tick.
type Settler interface {
	PoolOpen(ctx context.Context, slotID, matchID string, entrants []string) error
	PoolResolve(ctx context.Context, slotID, matchID, winnerID string) error
}

// AuditEntry is one admission or lifecycle event for the audit log.
type AuditEntry struct {
	TS      string `json:"ts"`
	SlotID  string `json:"slot_id"`
	MatchID string `json:"match_id,omitempty"`
	Kind    string `json:"kind"`
	AgentID string `json:"agent_id,omitempty"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type AuditSink interface {
	WriteAudit(e AuditEntry) error
}

// RecorderFactory builds the journal sinks for one new match.
type RecorderFactory func(slotID, matchID string) []match.Recorder

// Options wires the manager into its surroundings. Every field is
// optional; a zero Options runs matches with no persistence at all.
type Options struct {
	Tuning    tuning.Tuning
	Logger    *log.Logger
	Store     ResultStore
	Settler   Settler
	Audit     AuditSink
	Recorders RecorderFactory

	// OnRecord runs once per finished match, off the tick path, for
	// match-record files and other slow sinks.
	OnRecord func(slotID string, cfg match.Config, sum match.Summary, ranking []match.RankedResult)

	// Seed is the base for per-match seeds; zero means wall clock.
	Seed int64

	// FillPilot steers server-managed fill snakes. Nil disables fill
	// even when a slot's fill spec enables it.
	FillPilot PilotFunc
}

type slotRuntime struct {
	spec  SlotSpec
	phase SlotPhase
	gen   uint64

	m        *match.Match
	matchNum int64

	countdownT *time.Timer
	resultsT   *time.Timer
	fillT      *time.Timer

	history []match.Summary
}

// Manager sequences one Match per slot over time: lobby admission,
// countdown arming, start, results, and the next lobby. It owns no
// simulation state; everything inside a match belongs to that match's
// loop goroutine.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	opts  Options
	log   *log.Logger
	slots map[string]*slotRuntime

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func NewManager(cfg Config, opts Options) (*Manager, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[slots] ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		cfg:    cfg,
		opts:   opts,
		log:    opts.Logger,
		slots:  make(map[string]*slotRuntime, len(cfg.Slots)),
		ctx:    ctx,
		cancel: cancel,
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, spec := range cfg.Slots {
		s := &slotRuntime{spec: spec}
		mgr.slots[spec.ID] = s
		if err := mgr.openLobbyLocked(s); err != nil {
			cancel()
			return nil, err
		}
	}
	return mgr, nil
}

func (mgr *Manager) DefaultSlotID() string { return mgr.cfg.DefaultSlotID }

func (mgr *Manager) SlotIDs() []string { return mgr.cfg.SlotIDs() }

// openLobbyLocked recycles a slot into a fresh lobby under a new match
// id and generation. Timers armed against the old generation become
// no-ops the moment gen advances.
func (mgr *Manager) openLobbyLocked(s *slotRuntime) error {
	s.gen++
	s.matchNum++
	gen := s.gen
	mgr.stopTimersLocked(s)

	t := mgr.opts.Tuning
	cfg := match.Config{
		ID:     uuid.NewString(),
		SlotID: s.spec.ID,

		TickRateHz:  t.TickRateHz,
		ArenaWidth:  s.spec.ArenaWidth,
		ArenaHeight: s.spec.ArenaHeight,
		WallMargin:  s.spec.WallMargin,
		Capacity:    s.spec.Capacity,
		Seed:        mgr.opts.Seed + s.spec.SeedOffset + s.matchNum,

		SnakeSpeed:              t.Snake.Speed,
		InitialSegments:         t.Snake.InitialSegments,
		SegmentSpacing:          t.Snake.SegmentSpacing,
		SpacingGrowthPerSegment: t.Snake.SpacingGrowthPerSegment,
		SpacingGrowthCap:        t.Snake.SpacingGrowthCap,
		SpawnTaper:              t.Snake.SpawnTaper,

		HeadRadius:   t.Snake.HeadRadius,
		BodyRadius:   t.Snake.BodyRadius,
		PelletRadius: t.Food.PelletRadius,

		SelfSkipSegments: t.Collision.SelfSkipSegments,
		InitialPellets:   t.Food.InitialPellets,
		PelletValue:      t.Food.PelletValue,
		DropJitter:       t.Food.DropJitter,
		GridCellSize:     t.Collision.GridCellSize,
	}

	m, err := match.New(cfg)
	if err != nil {
		return fmt.Errorf("slot %s: %w", s.spec.ID, err)
	}
	m.SetRanker(HouseRanking(t.Results.SurvivalBonusMs))
	m.SetOnEnd(func(sum match.Summary) { mgr.handleMatchEnd(s.spec.ID, gen, cfg, sum) })
	if mgr.opts.Recorders != nil {
		for _, r := range mgr.opts.Recorders(s.spec.ID, cfg.ID) {
			m.AddRecorder(r)
		}
	}

	s.m = m
	s.phase = SlotLobby
	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()
		_ = m.Run(mgr.ctx)
	}()

	mgr.audit(AuditEntry{SlotID: s.spec.ID, MatchID: cfg.ID, Kind: "lobby_opened"})
	mgr.log.Printf("slot=%s lobby open match=%s gen=%d", s.spec.ID, cfg.ID, gen)
	return nil
}

func (mgr *Manager) stopTimersLocked(s *slotRuntime) {
	for _, t := range []**time.Timer{&s.countdownT, &s.resultsT, &s.fillT} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

// Join seats an entrant on a slot. The slot phase gate runs first; the
// engine applies its own capacity and credential checks. A successful
// second distinct join arms the countdown.
func (mgr *Manager) Join(slotID, name, skinID, credential string, out chan []byte) (match.JoinResult, string) {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return match.JoinResult{}, protocol.ErrSlotNotFound
	}
	if s.phase == SlotActive || s.phase == SlotResults {
		mgr.mu.Unlock()
		mgr.audit(AuditEntry{SlotID: slotID, Kind: "join_denied", Code: protocol.ErrNotInLobby, Detail: name})
		return match.JoinResult{}, protocol.ErrNotInLobby
	}
	m := s.m
	gen := s.gen
	mgr.mu.Unlock()

	res, ok := sendJoin(m, match.JoinRequest{Name: name, SkinID: skinID, Credential: credential, Out: out})
	if !ok {
		return match.JoinResult{}, protocol.ErrMatchBusy
	}
	if res.Code != "" && res.Code != protocol.ErrSeatTaken {
		mgr.audit(AuditEntry{SlotID: slotID, MatchID: m.ID(), Kind: "join_denied", Code: res.Code, Detail: name})
	}
	if res.Code == "" {
		mgr.mu.Lock()
		if s.gen == gen {
			mgr.afterJoinLocked(s, res.Seated)
		}
		mgr.mu.Unlock()
	}
	return res, res.Code
}

// afterJoinLocked arms slot timers off an admission: the countdown
// once a second distinct seat fills, the fill timer while a first
// joiner waits alone. A lone joiner never arms the countdown.
func (mgr *Manager) afterJoinLocked(s *slotRuntime, seated int) {
	if seated >= 2 && s.phase == SlotLobby {
		mgr.armCountdownLocked(s)
	}
	if seated == 1 && s.spec.Fill.Enabled && mgr.opts.FillPilot != nil && s.fillT == nil {
		gen := s.gen
		slotID := s.spec.ID
		s.fillT = time.AfterFunc(time.Duration(s.spec.Fill.DelayMs)*time.Millisecond, func() {
			mgr.fireFill(slotID, gen)
		})
	}
}

func (mgr *Manager) armCountdownLocked(s *slotRuntime) {
	if s.countdownT != nil {
		s.countdownT.Stop()
	}
	s.phase = SlotCountdown
	gen := s.gen
	slotID := s.spec.ID
	d := s.spec.Countdown()
	s.countdownT = time.AfterFunc(d, func() { mgr.fireCountdown(slotID, gen) })
	mgr.audit(AuditEntry{SlotID: slotID, MatchID: s.m.ID(), Kind: "countdown_armed", Detail: d.String()})
	mgr.log.Printf("slot=%s countdown armed d=%s match=%s", slotID, d, s.m.ID())
}

func (mgr *Manager) fireCountdown(slotID string, gen uint64) {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil || s.gen != gen || s.phase != SlotCountdown {
		mgr.mu.Unlock()
		return
	}
	s.countdownT = nil
	s.phase = SlotActive
	m := s.m
	duration := s.spec.MatchDurationMs
	mgr.mu.Unlock()

	if err := sendControl(m, match.ControlRequest{Kind: match.ControlStart, DurationMs: duration}); err != nil {
		mgr.log.Printf("slot=%s start match=%s: %v", slotID, m.ID(), err)
		return
	}
	mgr.audit(AuditEntry{SlotID: slotID, MatchID: m.ID(), Kind: "match_started"})

	if mgr.opts.Settler != nil {
		snap := m.Snapshot()
		entrants := make([]string, 0, len(snap.Snakes))
		for _, sn := range snap.Snakes {
			entrants = append(entrants, sn.ID)
		}
		mgr.wg.Add(1)
		go func() {
			defer mgr.wg.Done()
			ctx, cancel := context.WithTimeout(mgr.ctx, 10*time.Second)
			defer cancel()
			if err := mgr.opts.Settler.PoolOpen(ctx, slotID, m.ID(), entrants); err != nil {
				mgr.log.Printf("slot=%s pool open match=%s: %v", slotID, m.ID(), err)
			}
		}()
	}
}

// Leave frees a seat (lobby) or retires a snake (active). Dropping
// back below two distinct seats cancels a pending countdown.
func (mgr *Manager) Leave(slotID, agentID string) bool {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return false
	}
	m := s.m
	gen := s.gen
	mgr.mu.Unlock()

	res, ok := sendLeave(m, agentID)
	if !ok {
		return false
	}
	if res.Existed && res.Phase == match.PhaseLobby {
		mgr.mu.Lock()
		if s.gen == gen && s.phase == SlotCountdown && res.Seated < 2 {
			if s.countdownT != nil {
				s.countdownT.Stop()
				s.countdownT = nil
			}
			s.phase = SlotLobby
			mgr.audit(AuditEntry{SlotID: slotID, MatchID: m.ID(), Kind: "countdown_cancelled", AgentID: agentID})
			mgr.log.Printf("slot=%s countdown cancelled seated=%d", slotID, res.Seated)
		}
		mgr.mu.Unlock()
	}
	return res.Existed
}

// Steer routes one steering intent into the slot's current match.
func (mgr *Manager) Steer(slotID string, env match.SteerEnvelope) string {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return protocol.ErrSlotNotFound
	}
	m := s.m
	mgr.mu.Unlock()

	select {
	case m.Inbox() <- env:
		return ""
	case <-m.Done():
		return protocol.ErrMatchInactive
	default:
		return protocol.ErrMatchBusy
	}
}

// Watch attaches a spectator session to the slot's current match.
func (mgr *Manager) Watch(slotID string, req match.ObserverJoinRequest) string {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return protocol.ErrSlotNotFound
	}
	m := s.m
	mgr.mu.Unlock()

	select {
	case m.ObserverJoin() <- req:
		return ""
	case <-m.Done():
		return protocol.ErrMatchInactive
	case <-time.After(matchRequestTimeout):
		return protocol.ErrMatchBusy
	}
}

func (mgr *Manager) Unwatch(slotID, sessionID string) {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return
	}
	m := s.m
	mgr.mu.Unlock()

	select {
	case m.ObserverLeave() <- sessionID:
	case <-m.Done():
	default:
	}
}

// handleMatchEnd runs on the match loop goroutine, exactly once per
// match. Everything slow goes to manager goroutines; only the phase
// flip and the results timer happen inline.
func (mgr *Manager) handleMatchEnd(slotID string, gen uint64, cfg match.Config, sum match.Summary) {
	ranking := HouseRanking(mgr.opts.Tuning.Results.SurvivalBonusMs)(sum)
	mgr.audit(AuditEntry{SlotID: slotID, MatchID: sum.MatchID, Kind: "match_finished",
		Code: string(sum.Reason), Detail: sum.WinnerID})

	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()
		if mgr.opts.Store != nil {
			if err := mgr.opts.Store.RecordMatch(sum, ranking); err != nil {
				mgr.log.Printf("slot=%s store match=%s: %v", slotID, sum.MatchID, err)
			}
		}
		if mgr.opts.Settler != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mgr.opts.Settler.PoolResolve(ctx, slotID, sum.MatchID, sum.WinnerID); err != nil {
				mgr.log.Printf("slot=%s pool resolve match=%s: %v", slotID, sum.MatchID, err)
			}
		}
		if mgr.opts.OnRecord != nil {
			mgr.opts.OnRecord(slotID, cfg, sum, ranking)
		}
	}()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	s := mgr.slots[slotID]
	if s == nil || s.gen != gen {
		return
	}
	mgr.stopTimersLocked(s)
	s.phase = SlotResults
	s.history = append(s.history, sum)
	if over := len(s.history) - s.spec.HistorySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.resultsT = time.AfterFunc(s.spec.ResultsDelay(), func() { mgr.recycleSlot(slotID, gen) })
}

func (mgr *Manager) recycleSlot(slotID string, gen uint64) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	s := mgr.slots[slotID]
	if s == nil || s.gen != gen {
		return
	}
	s.m.Stop()
	if err := mgr.openLobbyLocked(s); err != nil {
		mgr.log.Printf("slot=%s reopen: %v", slotID, err)
	}
}

// ForceStart skips the countdown; admin only. A lobby below two seats
// still starts (fill snakes may be the only entrants).
func (mgr *Manager) ForceStart(slotID string) error {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return fmt.Errorf("slot %s not found", slotID)
	}
	if s.phase != SlotLobby && s.phase != SlotCountdown {
		phase := s.phase
		mgr.mu.Unlock()
		return fmt.Errorf("slot %s in phase %s", slotID, phase)
	}
	mgr.stopTimersLocked(s)
	s.phase = SlotActive
	m := s.m
	duration := s.spec.MatchDurationMs
	mgr.mu.Unlock()

	return sendControl(m, match.ControlRequest{Kind: match.ControlStart, DurationMs: duration})
}

// ForceStop ends the current match immediately; results flow as usual.
func (mgr *Manager) ForceStop(slotID string) error {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return fmt.Errorf("slot %s not found", slotID)
	}
	m := s.m
	mgr.mu.Unlock()

	return sendControl(m, match.ControlRequest{Kind: match.ControlStop, Reason: match.ReasonStopped})
}

// SlotStatus is the admin read of one slot.
type SlotStatus struct {
	SlotID   string             `json:"slot_id"`
	Phase    SlotPhase          `json:"phase"`
	MatchID  string             `json:"match_id"`
	Seated   int                `json:"seated"`
	Capacity int                `json:"capacity"`
	Tick     uint64             `json:"tick"`
	Metrics  match.MatchMetrics `json:"metrics"`
}

func (mgr *Manager) SlotState(slotID string) (SlotStatus, bool) {
	mgr.mu.Lock()
	s := mgr.slots[slotID]
	if s == nil {
		mgr.mu.Unlock()
		return SlotStatus{}, false
	}
	m := s.m
	phase := s.phase
	mgr.mu.Unlock()

	snap := m.Snapshot()
	return SlotStatus{
		SlotID:   slotID,
		Phase:    phase,
		MatchID:  m.ID(),
		Seated:   snap.Seated,
		Capacity: snap.Capacity,
		Tick:     snap.Tick,
		Metrics:  m.Metrics(),
	}, true
}

// History returns the slot's bounded ring of recent match summaries,
// newest last.
func (mgr *Manager) History(slotID string) []match.Summary {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	s := mgr.slots[slotID]
	if s == nil {
		return nil
	}
	return append([]match.Summary(nil), s.history...)
}

// Manifest lists every slot for the spectator bootstrap.
func (mgr *Manager) Manifest() []observerproto.SlotInfo {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make([]observerproto.SlotInfo, 0, len(mgr.slots))
	for id, s := range mgr.slots {
		snap := s.m.Snapshot()
		out = append(out, observerproto.SlotInfo{
			ID:         id,
			Phase:      string(s.phase),
			Capacity:   snap.Capacity,
			Seated:     snap.Seated,
			MatchID:    s.m.ID(),
			Tick:       snap.Tick,
			TickRateHz: mgr.opts.Tuning.TickRateHz,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Metrics snapshots every slot's current match metrics, keyed by slot.
func (mgr *Manager) Metrics() map[string]match.MatchMetrics {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make(map[string]match.MatchMetrics, len(mgr.slots))
	for id, s := range mgr.slots {
		out[id] = s.m.Metrics()
	}
	return out
}

// Close stops every match and waits for their loops and the manager's
// worker goroutines to drain. Safe to call more than once.
func (mgr *Manager) Close() {
	mgr.closeOnce.Do(func() {
		mgr.mu.Lock()
		for _, s := range mgr.slots {
			mgr.stopTimersLocked(s)
			s.gen++ // orphan any timer that already fired
			s.m.Stop()
		}
		mgr.mu.Unlock()
		mgr.cancel()
		mgr.wg.Wait()
	})
}

func (mgr *Manager) audit(e AuditEntry) {
	if mgr.opts.Audit == nil {
		return
	}
	e.TS = time.Now().UTC().Format(time.RFC3339Nano)
	if err := mgr.opts.Audit.WriteAudit(e); err != nil {
		mgr.log.Printf("audit %s/%s: %v", e.SlotID, e.Kind, err)
	}
}

func sendJoin(m *match.Match, req match.JoinRequest) (match.JoinResult, bool) {
	resp := make(chan match.JoinResult, 1)
	req.Resp = resp
	select {
	case m.Join() <- req:
	case <-m.Done():
		return match.JoinResult{}, false
	case <-time.After(matchRequestTimeout):
		return match.JoinResult{}, false
	}
	select {
	case res := <-resp:
		return res, true
	case <-m.Done():
		return match.JoinResult{}, false
	case <-time.After(matchRequestTimeout):
		return match.JoinResult{}, false
	}
}

func sendLeave(m *match.Match, agentID string) (match.LeaveResult, bool) {
	resp := make(chan match.LeaveResult, 1)
	select {
	case m.Leave() <- match.LeaveRequest{AgentID: agentID, Resp: resp}:
	case <-m.Done():
		return match.LeaveResult{}, false
	case <-time.After(matchRequestTimeout):
		return match.LeaveResult{}, false
	}
	select {
	case res := <-resp:
		return res, true
	case <-m.Done():
		return match.LeaveResult{}, false
	case <-time.After(matchRequestTimeout):
		return match.LeaveResult{}, false
	}
}

func sendControl(m *match.Match, req match.ControlRequest) error {
	resp := make(chan error, 1)
	req.Resp = resp
	select {
	case m.Control() <- req:
	case <-m.Done():
		return fmt.Errorf("match %s stopped", m.ID())
	case <-time.After(matchRequestTimeout):
		return fmt.Errorf("match %s control queue full", m.ID())
	}
	select {
	case err := <-resp:
		return err
	case <-m.Done():
		return fmt.Errorf("match %s stopped", m.ID())
	case <-time.After(matchRequestTimeout):
		return fmt.Errorf("match %s control timeout", m.ID())
	}
}
