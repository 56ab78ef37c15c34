package multimatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultSlotID != "main" || len(cfg.Slots) != 1 {
		t.Fatalf("defaults: %+v", cfg)
	}
	s := cfg.Slots[0]
	if s.Capacity != 8 || s.MatchDurationMs != 180_000 || !s.Fill.Enabled {
		t.Fatalf("slot defaults: %+v", s)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arenas.yaml")
	doc := `
default_slot_id: duel
slots:
  - id: duel
    capacity: 2
    countdown_ms: 5000
    min_countdown_ms: 2000
    match_duration_ms: 90000
    arena_width: 1200
    arena_height: 800
    fill:
      enabled: false
  - id: main
    capacity: 12
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultSlotID != "duel" {
		t.Fatalf("default slot = %s", cfg.DefaultSlotID)
	}
	duel, ok := cfg.SlotSpecByID("duel")
	if !ok {
		t.Fatal("duel slot missing")
	}
	if duel.Capacity != 2 || duel.ArenaWidth != 1200 || duel.ArenaHeight != 800 {
		t.Fatalf("duel: %+v", duel)
	}
	if duel.Countdown() != 5*time.Second {
		t.Fatalf("countdown = %s", duel.Countdown())
	}
	// unset fields fall back to defaults
	main, _ := cfg.SlotSpecByID("main")
	if main.MatchDurationMs != 180_000 || main.ResultsDelayMs != 8_000 {
		t.Fatalf("main fallback: %+v", main)
	}
	if got := cfg.SlotIDs(); len(got) != 2 || got[0] != "duel" || got[1] != "main" {
		t.Fatalf("slot ids: %v", got)
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		c := defaults()
		c.Normalize()
		return c
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no slots", func(c *Config) { c.Slots = nil }},
		{"empty id", func(c *Config) { c.Slots[0].ID = " " }},
		{"dup id", func(c *Config) { c.Slots = append(c.Slots, c.Slots[0]) }},
		{"capacity one", func(c *Config) { c.Slots[0].Capacity = 1 }},
		{"arena too small", func(c *Config) { c.Slots[0].ArenaWidth = 80; c.Slots[0].WallMargin = 50 }},
		{"min over countdown", func(c *Config) { c.Slots[0].MinCountdownMs = 99_000 }},
		{"unknown default", func(c *Config) { c.DefaultSlotID = "ghost" }},
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestCountdownFloor(t *testing.T) {
	s := SlotSpec{CountdownMs: 1000, MinCountdownMs: 3000}
	if d := s.Countdown(); d != 3*time.Second {
		t.Fatalf("countdown = %s, want 3s", d)
	}
}
