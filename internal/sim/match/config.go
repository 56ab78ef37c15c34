package match

// Config fully determines one arena instance. Together with the seed and
// the recorded input stream it makes a match reproducible.
type Config struct {
	ID     string
	SlotID string

	TickRateHz  int
	ArenaWidth  float64
	ArenaHeight float64
	WallMargin  float64
	Capacity    int
	Seed        int64

	SnakeSpeed              float64
	InitialSegments         int
	SegmentSpacing          float64
	SpacingGrowthPerSegment float64
	SpacingGrowthCap        float64
	SpawnTaper              float64

	HeadRadius   float64
	BodyRadius   float64
	PelletRadius float64

	SelfSkipSegments int
	InitialPellets   int
	PelletValue      int
	DropJitter       float64
	GridCellSize     float64
}

func (c *Config) applyDefaults() {
	if c.SlotID == "" {
		c.SlotID = "arena"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.ArenaWidth <= 0 {
		c.ArenaWidth = 2000
	}
	if c.ArenaHeight <= 0 {
		c.ArenaHeight = 2000
	}
	if c.WallMargin <= 0 {
		c.WallMargin = 50
	}
	if c.Capacity <= 0 {
		c.Capacity = 8
	}
	if c.SnakeSpeed <= 0 {
		c.SnakeSpeed = 3.0
	}
	if c.InitialSegments <= 0 {
		c.InitialSegments = 10
	}
	if c.SegmentSpacing <= 0 {
		c.SegmentSpacing = 8.0
	}
	if c.SpacingGrowthPerSegment < 0 {
		c.SpacingGrowthPerSegment = 0
	}
	if c.SpacingGrowthCap <= 0 {
		c.SpacingGrowthCap = 4.0
	}
	if c.SpawnTaper <= 0 || c.SpawnTaper > 1 {
		c.SpawnTaper = 0.5
	}
	if c.HeadRadius <= 0 {
		c.HeadRadius = 10.0
	}
	if c.BodyRadius <= 0 {
		c.BodyRadius = 8.0
	}
	if c.PelletRadius <= 0 {
		c.PelletRadius = 5.0
	}
	if c.SelfSkipSegments <= 0 {
		c.SelfSkipSegments = 4
	}
	if c.InitialPellets <= 0 {
		c.InitialPellets = 300
	}
	if c.PelletValue <= 0 {
		c.PelletValue = 5
	}
	if c.DropJitter < 0 {
		c.DropJitter = 0
	}
	if c.GridCellSize <= 0 {
		c.GridCellSize = 100.0
	}
}

// requiredSpacing is the head-insert threshold for a snake of n segments.
// It widens as the snake grows, up to the growth cap.
func (c *Config) requiredSpacing(n int) float64 {
	grow := c.SpacingGrowthPerSegment * float64(n)
	if grow > c.SpacingGrowthCap {
		grow = c.SpacingGrowthCap
	}
	return c.SegmentSpacing + grow
}
