// Command reelplay plays a script in the terminal and prints the submitted
// answers as JSON on exit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/models"
	"github.com/BTreeMap/ReelPipe/internal/script"
	"github.com/BTreeMap/ReelPipe/internal/tui"
)

// result collects the single submission of a play-through.
type result struct {
	SessionID   string         `json:"session_id"`
	Script      string         `json:"script"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Answers     []answerRecord `json:"answers"`

	mu  sync.Mutex
	raw map[int]flow.Answer
}

type answerRecord struct {
	StepID int         `json:"step_id"`
	Kind   flow.Kind   `json:"kind"`
	Value  flow.Answer `json:"value"`
}

func (r *result) Submit(_ context.Context, sessionID string, answers map[int]flow.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SessionID = sessionID
	r.SubmittedAt = time.Now().UTC()
	r.raw = answers
	return nil
}

// records orders answers by step id and labels them with the step kind.
func (r *result) records(cfg *flow.Config) []answerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.raw))
	for id := range r.raw {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]answerRecord, 0, len(ids))
	for _, id := range ids {
		rec := answerRecord{StepID: id, Value: r.raw[id]}
		if def, ok := cfg.Step(id); ok {
			rec.Kind = def.Kind
		}
		out = append(out, rec)
	}
	return out
}

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}
	scriptPath := flag.String("script", os.Getenv("REELPIPE_SCRIPT"), "YAML script path, builtin when empty")
	settleMS := flag.Int("settle-ms", -1, "settle delay in milliseconds, negative keeps the script value")
	logPath := flag.String("log", "", "write debug logs to this file")
	flag.Parse()

	if err := run(*scriptPath, *settleMS, *logPath, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "reelplay:", err)
		os.Exit(1)
	}
}

func run(scriptPath string, settleMS int, logPath string, out io.Writer) error {
	closeLog, err := initializeLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	sc, err := script.Load(scriptPath)
	if err != nil {
		return err
	}
	var opts []flow.ConfigOption
	if settleMS >= 0 {
		opts = append(opts, flow.WithSettleDelay(time.Duration(settleMS)*time.Millisecond))
	}
	cfg, err := sc.Config(opts...)
	if err != nil {
		return err
	}

	timer := flow.NewSimpleTimer()
	defer timer.Stop()

	res := &result{Script: sc.Name}
	fwd := &tui.Forwarder{}
	f, err := flow.New(uuid.NewString(), cfg, timer,
		flow.WithSubmitter(res),
		flow.WithOnChange(fwd.OnChange),
	)
	if err != nil {
		return err
	}
	defer f.Close()

	p := tea.NewProgram(tui.New(f, tui.Finish{Title: sc.Finish.Title, Body: sc.Finish.Body}), tea.WithAltScreen())
	fwd.Attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}

	if f.Mode() != models.ModeSubmitted {
		slog.Info("reelplay exited before submitting", "mode", f.Mode())
		return nil
	}
	res.Answers = res.records(cfg)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// initializeLogger keeps logs off the terminal the program draws on.
func initializeLogger(path string) (func(), error) {
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return func() { file.Close() }, nil
}
