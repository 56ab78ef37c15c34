package multimatch

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config declares the arena slots a server runs. Each slot cycles
// lobby -> countdown -> active -> results forever, one match at a time.
type Config struct {
	DefaultSlotID string     `yaml:"default_slot_id"`
	Slots         []SlotSpec `yaml:"slots"`
}

type SlotSpec struct {
	ID       string `yaml:"id"`
	Capacity int    `yaml:"capacity"`

	CountdownMs     int64 `yaml:"countdown_ms"`
	MinCountdownMs  int64 `yaml:"min_countdown_ms"`
	MatchDurationMs int64 `yaml:"match_duration_ms"`
	ResultsDelayMs  int64 `yaml:"results_delay_ms"`

	ArenaWidth  float64 `yaml:"arena_width"`
	ArenaHeight float64 `yaml:"arena_height"`
	WallMargin  float64 `yaml:"wall_margin"`
	SeedOffset  int64   `yaml:"seed_offset"`

	HistorySize int `yaml:"history_size"`

	Fill FillSpec `yaml:"fill"`
}

// FillSpec controls server-managed fill snakes: once a first joiner has
// waited DelayMs alone, the slot seats pilots up to Target entrants.
type FillSpec struct {
	Enabled bool     `yaml:"enabled"`
	Target  int      `yaml:"target"`
	DelayMs int64    `yaml:"delay_ms"`
	Names   []string `yaml:"names,omitempty"`
}

func (s SlotSpec) Countdown() time.Duration {
	d := time.Duration(s.CountdownMs) * time.Millisecond
	if min := time.Duration(s.MinCountdownMs) * time.Millisecond; d < min {
		d = min
	}
	return d
}

func (s SlotSpec) ResultsDelay() time.Duration {
	return time.Duration(s.ResultsDelayMs) * time.Millisecond
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("arenas.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("arenas.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultSlotID: "main",
		Slots: []SlotSpec{
			{
				ID:              "main",
				Capacity:        8,
				CountdownMs:     10_000,
				MinCountdownMs:  3_000,
				MatchDurationMs: 180_000,
				ResultsDelayMs:  8_000,
				ArenaWidth:      2000,
				ArenaHeight:     2000,
				WallMargin:      50,
				HistorySize:     16,
				Fill: FillSpec{
					Enabled: true,
					Target:  4,
					DelayMs: 4_000,
				},
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Slots {
		s := &c.Slots[i]
		if s.Capacity <= 0 {
			s.Capacity = 8
		}
		if s.CountdownMs <= 0 {
			s.CountdownMs = 10_000
		}
		if s.MinCountdownMs <= 0 {
			s.MinCountdownMs = 3_000
		}
		if s.MatchDurationMs <= 0 {
			s.MatchDurationMs = 180_000
		}
		if s.ResultsDelayMs <= 0 {
			s.ResultsDelayMs = 8_000
		}
		if s.ArenaWidth <= 0 {
			s.ArenaWidth = 2000
		}
		if s.ArenaHeight <= 0 {
			s.ArenaHeight = 2000
		}
		if s.WallMargin <= 0 {
			s.WallMargin = 50
		}
		if s.HistorySize <= 0 {
			s.HistorySize = 16
		}
		if s.Fill.Enabled {
			if s.Fill.Target <= 0 {
				s.Fill.Target = 4
			}
			if s.Fill.Target > s.Capacity {
				s.Fill.Target = s.Capacity
			}
			if s.Fill.DelayMs <= 0 {
				s.Fill.DelayMs = 4_000
			}
		}
	}
	if c.DefaultSlotID == "" && len(c.Slots) > 0 {
		c.DefaultSlotID = c.Slots[0].ID
	}
}

func (c Config) Validate() error {
	if len(c.Slots) == 0 {
		return fmt.Errorf("slots must not be empty")
	}
	seen := map[string]bool{}
	for _, s := range c.Slots {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("slot id must not be empty")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate slot id: %s", s.ID)
		}
		seen[s.ID] = true
		if s.Capacity < 2 {
			return fmt.Errorf("slot %s capacity must be >= 2", s.ID)
		}
		if s.ArenaWidth <= 2*s.WallMargin || s.ArenaHeight <= 2*s.WallMargin {
			return fmt.Errorf("slot %s arena %.0fx%.0f too small for wall margin %.0f",
				s.ID, s.ArenaWidth, s.ArenaHeight, s.WallMargin)
		}
		if s.MinCountdownMs > s.CountdownMs {
			return fmt.Errorf("slot %s min_countdown_ms %d exceeds countdown_ms %d",
				s.ID, s.MinCountdownMs, s.CountdownMs)
		}
		if s.Fill.Enabled && s.Fill.Target > s.Capacity {
			return fmt.Errorf("slot %s fill target %d exceeds capacity %d", s.ID, s.Fill.Target, s.Capacity)
		}
	}
	if c.DefaultSlotID == "" {
		return fmt.Errorf("default_slot_id must not be empty")
	}
	if !seen[c.DefaultSlotID] {
		return fmt.Errorf("default_slot_id %q not found in slots", c.DefaultSlotID)
	}
	return nil
}

func (c Config) SlotSpecByID(id string) (SlotSpec, bool) {
	for _, s := range c.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return SlotSpec{}, false
}

func (c Config) SlotIDs() []string {
	out := make([]string, 0, len(c.Slots))
	for _, s := range c.Slots {
		out = append(out, s.ID)
	}
	sort.Strings(out)
	return out
}
