package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/testutil"
)

func TestResultRecordsAreOrderedAndLabelled(t *testing.T) {
	cfg := testutil.DemoConfig(t)
	res := &result{Script: "demo"}
	err := res.Submit(context.Background(), "s1", map[int]flow.Answer{
		4: flow.ContactAnswer("Ana", "5512345678"),
		1: flow.Choice("Dos"),
		0: flow.Confirm(true),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res.Answers = res.records(cfg)

	if len(res.Answers) != 3 || res.Answers[0].StepID != 0 || res.Answers[2].StepID != 4 {
		t.Fatalf("unexpected order %+v", res.Answers)
	}
	if res.Answers[1].Kind != flow.KindSingleChoice || res.Answers[2].Kind != flow.KindContact {
		t.Errorf("unexpected kinds %+v", res.Answers)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"session_id":"s1"`, `"script":"demo"`, `"value":"Dos"`, `"name":"Ana"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s misses %s", out, want)
		}
	}
}

func TestInitializeLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	closeLog, err := initializeLogger("")
	if err != nil {
		t.Fatalf("discard logger: %v", err)
	}
	closeLog()

	path := filepath.Join(t.TempDir(), "reelplay.log")
	closeLog, err = initializeLogger(path)
	if err != nil {
		t.Fatalf("file logger: %v", err)
	}
	slog.Debug("hello from the test")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from the test") {
		t.Errorf("log file missing entry: %s", data)
	}

	if _, err := initializeLogger(filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("expected error for unwritable path")
	}
}
