package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Snake     Snake     `yaml:"snake"`
	Food      Food      `yaml:"food"`
	Collision Collision `yaml:"collision"`
	Results   Results   `yaml:"results"`
}

type Snake struct {
	Speed                   float64 `yaml:"speed"`
	InitialSegments         int     `yaml:"initial_segments"`
	SegmentSpacing          float64 `yaml:"segment_spacing"`
	SpacingGrowthPerSegment float64 `yaml:"spacing_growth_per_segment"`
	SpacingGrowthCap        float64 `yaml:"spacing_growth_cap"`
	SpawnTaper              float64 `yaml:"spawn_taper"`
	HeadRadius              float64 `yaml:"head_radius"`
	BodyRadius              float64 `yaml:"body_radius"`
}

type Food struct {
	InitialPellets int     `yaml:"initial_pellets"`
	PelletValue    int     `yaml:"pellet_value"`
	PelletRadius   float64 `yaml:"pellet_radius"`
	DropJitter     float64 `yaml:"drop_jitter"`
}

type Collision struct {
	SelfSkipSegments int     `yaml:"self_skip_segments"`
	GridCellSize     float64 `yaml:"grid_cell_size"`
}

type Results struct {
	SurvivalBonusMs int64 `yaml:"survival_bonus_ms"`
}

// Default is the gameplay baseline; Load overlays the file on top of it
// so a partial tuning.yaml stays valid.
func Default() Tuning {
	return Tuning{
		TickRateHz: 20,
		Snake: Snake{
			Speed:                   3.0,
			InitialSegments:         10,
			SegmentSpacing:          8.0,
			SpacingGrowthPerSegment: 0.05,
			SpacingGrowthCap:        4.0,
			SpawnTaper:              0.5,
			HeadRadius:              10.0,
			BodyRadius:              8.0,
		},
		Food: Food{
			InitialPellets: 300,
			PelletValue:    5,
			PelletRadius:   5.0,
			DropJitter:     6.0,
		},
		Collision: Collision{
			SelfSkipSegments: 4,
			GridCellSize:     100.0,
		},
		Results: Results{
			SurvivalBonusMs: 750,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
