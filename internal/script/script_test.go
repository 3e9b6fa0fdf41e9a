package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/flow"
)

func TestLoadBuiltin(t *testing.T) {
	s, err := LoadBuiltin(BuiltinName)
	if err != nil {
		t.Fatalf("LoadBuiltin: %v", err)
	}
	if s.Source != "builtin" {
		t.Errorf("expected builtin source, got %q", s.Source)
	}
	if len(s.Scenes) != 11 || len(s.Steps) != 11 {
		t.Fatalf("expected 11 scenes and 11 steps, got %d and %d", len(s.Scenes), len(s.Steps))
	}

	cfg, err := s.Config()
	if err != nil {
		t.Fatalf("builtin script should validate: %v", err)
	}
	if cfg.Name() != "vita" || cfg.SettleDelay() != 300*time.Millisecond {
		t.Errorf("unexpected config name=%q settle=%v", cfg.Name(), cfg.SettleDelay())
	}

	last := cfg.Scenes()[len(cfg.Scenes())-1]
	if last.Tag != "cta" || !last.Window.Open() || last.Window.Start != 25*time.Second {
		t.Errorf("unexpected final scene %+v", last)
	}

	kinds := []flow.Kind{flow.KindWelcome}
	for i := 0; i < 6; i++ {
		kinds = append(kinds, flow.KindSingleChoice)
	}
	kinds = append(kinds, flow.KindReflection, flow.KindSingleChoice, flow.KindFreeText, flow.KindContact)
	for i, def := range cfg.Steps() {
		if def.ID != i {
			t.Errorf("step %d has id %d", i, def.ID)
		}
		if def.Kind != kinds[i] {
			t.Errorf("step %d kind %s, want %s", i, def.Kind, kinds[i])
		}
	}
	if s.Finish.Title == "" {
		t.Error("expected finish copy")
	}
}

func TestLoadEmptyPathUsesBuiltin(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != BuiltinName {
		t.Errorf("expected builtin script, got %q", s.Name)
	}
}

func TestLoadScriptFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	data := `
name: demo
description: "  Demo reel  "
settle_ms: 0
scenes:
  - tag: a
    start: 0
    end: 2
  - tag: b
    start: 2
steps:
  - kind: Welcome
  - kind: single-choice
    options: [" A ", "B"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if s.Source != path {
		t.Errorf("source = %q", s.Source)
	}
	if s.Description != "Demo reel" {
		t.Errorf("description not trimmed: %q", s.Description)
	}
	cfg, err := s.Config(flow.WithReelLength(5 * time.Second))
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.SettleDelay() != 0 {
		t.Errorf("expected synchronous settle, got %v", cfg.SettleDelay())
	}
	if got := cfg.Steps()[1].Options[0]; got != "A" {
		t.Errorf("options not trimmed: %q", got)
	}
	if cfg.Steps()[0].Kind != flow.KindWelcome {
		t.Errorf("kind not normalized: %q", cfg.Steps()[0].Kind)
	}
}

func TestScriptConfigReportsTableErrors(t *testing.T) {
	data := []byte(`
name: broken
scenes:
  - tag: a
    start: 0
    end: 2
  - tag: b
    start: 3
steps:
  - kind: welcome
`)
	s, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = s.Config()
	var cfgErr *flow.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for a gap between scenes, got %v", err)
	}
	if cfgErr.List != "scenes" || cfgErr.Index != 1 {
		t.Errorf("unexpected error location %+v", cfgErr)
	}
}

func TestParseRejectsIncompleteScripts(t *testing.T) {
	cases := map[string]string{
		"no name":         "scenes: [{tag: a, start: 0}]\nsteps: [{kind: welcome}]\n",
		"no scenes":       "name: x\nsteps: [{kind: welcome}]\n",
		"no steps":        "name: x\nscenes: [{tag: a, start: 0}]\n",
		"untagged scene":  "name: x\nscenes: [{start: 0}]\nsteps: [{kind: welcome}]\n",
		"negative settle": "name: x\nsettle_ms: -1\nscenes: [{tag: a, start: 0}]\nsteps: [{kind: welcome}]\n",
		"bad yaml":        "name: [x\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestLoadScriptMissingFile(t *testing.T) {
	if _, err := LoadScript(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadScript("  "); err == nil {
		t.Error("expected error for blank path")
	}
}
