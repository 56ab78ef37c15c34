package match

// MatchMetrics is a thread-safe read-only view of key loop signals.
// It is updated from the match loop goroutine and read from HTTP
// handlers and tests.
type MatchMetrics struct {
	MatchID string `json:"match_id"`
	SlotID  string `json:"slot_id"`
	Phase   string `json:"phase"`
	Tick    uint64 `json:"tick"`

	Seated    int `json:"seated"`
	Alive     int `json:"alive"`
	Pellets   int `json:"pellets"`
	Observers int `json:"observers"`

	JoinsTotal    uint64 `json:"joins_total"`
	DeniedTotal   uint64 `json:"denied_total"`
	KillsTotal    uint64 `json:"kills_total"`
	PelletsEaten  uint64 `json:"pellets_eaten_total"`
	FramesDropped uint64 `json:"frames_dropped_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepUS int64 `json:"step_us"`

	StatsWindowTicks uint64      `json:"stats_window_ticks"`
	StatsWindow      StatsBucket `json:"stats_window"`
}

type QueueDepths struct {
	Inbox   int `json:"inbox"`
	Join    int `json:"join"`
	Leave   int `json:"leave"`
	Control int `json:"control"`
}

func (m *Match) publishMetrics(nowTick uint64) {
	alive := 0
	for _, id := range m.order {
		if m.snakes[id].Alive {
			alive++
		}
	}
	m.metricsV.Store(MatchMetrics{
		MatchID:       m.cfg.ID,
		SlotID:        m.cfg.SlotID,
		Phase:         string(m.phase),
		Tick:          nowTick,
		Seated:        len(m.order),
		Alive:         alive,
		Pellets:       len(m.pellets),
		Observers:     len(m.observers),
		JoinsTotal:    m.joinsTotal,
		DeniedTotal:   m.deniedTotal,
		KillsTotal:    m.killsTotal,
		PelletsEaten:  m.pelletsEaten,
		FramesDropped: m.framesDropped,
		QueueDepths: QueueDepths{
			Inbox:   len(m.inbox),
			Join:    len(m.joins),
			Leave:   len(m.leaves),
			Control: len(m.control),
		},
		StepUS:           m.lastStepUs,
		StatsWindowTicks: m.stats.WindowTicks(),
		StatsWindow:      m.stats.Summarize(nowTick),
	})
}

func (m *Match) Metrics() MatchMetrics {
	if m == nil {
		return MatchMetrics{}
	}
	v := m.metricsV.Load()
	if v == nil {
		return MatchMetrics{}
	}
	mm, ok := v.(MatchMetrics)
	if !ok {
		return MatchMetrics{}
	}
	return mm
}
