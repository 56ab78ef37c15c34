package match

// StatsBucket aggregates loop activity over one bucket of ticks.
type StatsBucket struct {
	Deaths       int
	Steers       int
	PelletsEaten int
	Denied       int
}

// Stats is a rolling window of per-bucket counters, rotated by tick.
type Stats struct {
	bucketTicks uint64
	windowTicks uint64

	buckets []StatsBucket
	curIdx  int
	curBase uint64 // start tick (inclusive) of current bucket
}

func NewStats(bucketTicks, windowTicks uint64) *Stats {
	if bucketTicks <= 0 {
		bucketTicks = 200
	}
	if windowTicks < bucketTicks {
		windowTicks = bucketTicks
	}
	n := int(windowTicks / bucketTicks)
	if n < 1 {
		n = 1
	}
	return &Stats{
		bucketTicks: bucketTicks,
		windowTicks: uint64(n) * bucketTicks,
		buckets:     make([]StatsBucket, n),
	}
}

func (s *Stats) rotate(nowTick uint64) {
	if s == nil {
		return
	}
	// Move forward until nowTick is in [curBase, curBase+bucketTicks).
	for nowTick >= s.curBase+s.bucketTicks {
		s.curIdx = (s.curIdx + 1) % len(s.buckets)
		s.buckets[s.curIdx] = StatsBucket{}
		s.curBase += s.bucketTicks
	}
}

func (s *Stats) RecordDeath(nowTick uint64) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	s.buckets[s.curIdx].Deaths++
}

func (s *Stats) RecordSteer(nowTick uint64) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	s.buckets[s.curIdx].Steers++
}

func (s *Stats) RecordPelletEaten(nowTick uint64) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	s.buckets[s.curIdx].PelletsEaten++
}

func (s *Stats) RecordDenied(nowTick uint64) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	s.buckets[s.curIdx].Denied++
}

func (s *Stats) WindowTicks() uint64 {
	if s == nil {
		return 0
	}
	return s.windowTicks
}

func (s *Stats) Summarize(nowTick uint64) StatsBucket {
	if s == nil {
		return StatsBucket{}
	}
	s.rotate(nowTick)
	var out StatsBucket
	for _, b := range s.buckets {
		out.Deaths += b.Deaths
		out.Steers += b.Steers
		out.PelletsEaten += b.PelletsEaten
		out.Denied += b.Denied
	}
	return out
}
