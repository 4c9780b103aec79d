package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Mode != ModeTraining || cfg.Derived.Variant != "training" {
		t.Errorf("mode=%q variant=%q", cfg.Sim.Mode, cfg.Derived.Variant)
	}
	if cfg.Derived.CellSize != 10 {
		t.Errorf("cell size = %v, want 10", cfg.Derived.CellSize)
	}
	if cfg.Derived.WindowTicks != 250 {
		t.Errorf("window ticks = %d, want 250", cfg.Derived.WindowTicks)
	}
	if len(cfg.Spawn.Areas) != 4 || cfg.Spawn.Inheritance == nil {
		t.Errorf("areas = %d inheritance = %v", len(cfg.Spawn.Areas), cfg.Spawn.Inheritance)
	}
	if cfg.Avoidance.Workers != 12 || cfg.Avoidance.Radius != 0.35 {
		t.Errorf("avoidance = %+v", cfg.Avoidance)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	overlay := "sim:\n  mode: dataset\n  seed: 7\nfield:\n  rows: 5\n"
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Seed != 7 || cfg.Field.Rows != 5 || cfg.Field.Cols != 3 {
		t.Errorf("overlay not merged: seed=%d rows=%d cols=%d", cfg.Sim.Seed, cfg.Field.Rows, cfg.Field.Cols)
	}
	if cfg.Sim.DT != 0.04 {
		t.Errorf("dt lost in overlay: %v", cfg.Sim.DT)
	}
	if cfg.Derived.Variant != "framework" {
		t.Errorf("variant = %q, want framework", cfg.Derived.Variant)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		overlay string
		want    string
	}{
		{"mode", "sim:\n  mode: replay\n", "sim.mode"},
		{"dt", "sim:\n  dt: 0\n", "sim.dt"},
		{"field", "field:\n  rows: 0\n", "field"},
		{"groups", "spawn:\n  group_min: 3\n  group_max: 3\n", "group range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			if err := os.WriteFile(path, []byte(tt.overlay), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Policy.Seek.TurnGain = 1.75
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Policy.Seek.TurnGain != 1.75 {
		t.Errorf("turn gain = %v, want 1.75", back.Policy.Seek.TurnGain)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("Cfg did not panic")
		}
	}()
	Cfg()
}

func TestSetMode(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetMode(ModeDataset); err != nil {
		t.Fatal(err)
	}
	if cfg.Derived.Variant != "framework" {
		t.Errorf("variant = %q, want framework", cfg.Derived.Variant)
	}
	if err := cfg.SetMode("replay"); err == nil || cfg.Sim.Mode != ModeDataset {
		t.Errorf("err=%v mode=%q", err, cfg.Sim.Mode)
	}
}
