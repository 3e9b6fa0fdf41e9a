package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/models"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []map[int]Answer
	ids   []string
	err   error
}

func (r *recordingSubmitter) Submit(_ context.Context, sessionID string, answers map[int]Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, answers)
	r.ids = append(r.ids, sessionID)
	return r.err
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestFlow(t *testing.T, steps []Definition, timer Timer, opts ...Option) (*Flow, *recordingSubmitter) {
	t.Helper()
	settle := time.Duration(0)
	if timer != nil {
		settle = DefaultSettleDelay
	}
	cfg, err := NewConfig(threeScenes(), steps, WithSettleDelay(settle))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	sub := &recordingSubmitter{}
	opts = append([]Option{WithSubmitter(sub)}, opts...)
	f, err := New("session-1", cfg, timer, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(f.Close)
	return f, sub
}

func TestFlowScenarioCompleteQuestionnaire(t *testing.T) {
	timer := newFakeTimer()
	f, sub := newTestFlow(t, threeSteps(), timer)

	if err := f.TapContinue(); err != nil {
		t.Fatalf("forced exit: %v", err)
	}
	if f.Mode() != models.ModeWizard {
		t.Fatalf("expected wizard mode, got %s", f.Mode())
	}

	if err := f.Advance(answerPtr(Confirm(true))); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	timer.settle()
	if err := f.Advance(answerPtr(Choice("B"))); err != nil {
		t.Fatalf("choice: %v", err)
	}
	timer.settle()
	if err := f.SetDraftText("hello"); err != nil {
		t.Fatalf("draft: %v", err)
	}
	if err := f.Advance(nil); err != nil {
		t.Fatalf("free text: %v", err)
	}
	timer.settle()

	view := f.View()
	if view.Mode != models.ModeSubmitted || !view.Terminal {
		t.Fatalf("expected submitted terminal view, got mode=%s terminal=%v", view.Mode, view.Terminal)
	}
	want := map[int]interface{}{0: true, 1: "B", 2: "hello"}
	if len(view.Answers) != len(want) {
		t.Fatalf("expected %d answers, got %v", len(want), view.Answers)
	}
	for id, v := range want {
		if got := view.Answers[id].Interface(); got != v {
			t.Errorf("answer %d = %v, want %v", id, got, v)
		}
	}
	if sub.count() != 1 {
		t.Fatalf("expected exactly one submission, got %d", sub.count())
	}
	if sub.ids[0] != "session-1" {
		t.Errorf("submitted under wrong session %q", sub.ids[0])
	}
	if view.Progress != 1 || view.SubmittedAt == nil {
		t.Errorf("unexpected submitted view %+v", view)
	}

	b, err := json.Marshal(view.Answers)
	if err != nil {
		t.Fatalf("marshal answers: %v", err)
	}
	if string(b) != `{"0":true,"1":"B","2":"hello"}` {
		t.Errorf("unexpected answers JSON %s", b)
	}
}

func TestFlowScenarioEmptyFreeTextIsNoOp(t *testing.T) {
	f, sub := newTestFlow(t, threeSteps(), nil)
	if err := f.TapContinue(); err != nil {
		t.Fatalf("forced exit: %v", err)
	}
	if err := f.TapContinue(); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if err := f.Select(1, "A"); err != nil {
		t.Fatalf("choice: %v", err)
	}
	before := f.View()

	if err := f.Advance(nil); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("expected refusal, got %v", err)
	}
	if err := f.SubmitText("  "); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("expected refusal for blank text, got %v", err)
	}

	after := f.View()
	if after.Index != 2 || after.Index != before.Index {
		t.Errorf("index moved to %d", after.Index)
	}
	if len(after.Answers) != len(before.Answers) {
		t.Errorf("answers changed: %v -> %v", before.Answers, after.Answers)
	}
	if after.Mode != models.ModeWizard || sub.count() != 0 {
		t.Errorf("flow should still be collecting, mode=%s submissions=%d", after.Mode, sub.count())
	}
}

func TestFlowScenarioForcedExitMidScene(t *testing.T) {
	timer := newFakeTimer()
	f, _ := newTestFlow(t, threeSteps(), timer)

	for i := 0; i < 3; i++ {
		timer.tick()
	}
	view := f.View()
	if view.Mode != models.ModeTimeline || view.Index != 1 {
		t.Fatalf("expected reel on scene 1 at t=3, got mode=%s index=%d", view.Mode, view.Index)
	}

	if err := f.TapContinue(); err != nil {
		t.Fatalf("forced exit: %v", err)
	}
	view = f.View()
	if view.Mode != models.ModeWizard {
		t.Fatalf("expected wizard, got %s", view.Mode)
	}
	if view.Index != 0 || len(view.Answers) != 0 || view.Elapsed != 0 {
		t.Errorf("reel state leaked into questionnaire: %+v", view)
	}
	if view.Definition == nil || view.Definition.Kind != KindWelcome {
		t.Errorf("expected welcome step, got %+v", view.Definition)
	}
	if timer.count(true) != 0 {
		t.Error("reel clock still subscribed after the forced exit")
	}

	timer.tick()
	if f.View().Index != 0 {
		t.Error("stray tick moved the questionnaire")
	}
}

func TestFlowSubmitsExactlyOnce(t *testing.T) {
	timer := newFakeTimer()
	f, sub := newTestFlow(t, []Definition{{ID: 0, Kind: KindWelcome}}, timer)
	if err := f.TapContinue(); err != nil {
		t.Fatalf("forced exit: %v", err)
	}
	if err := f.TapContinue(); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := f.TapContinue(); !errors.Is(err, ErrInvalidAdvance) {
			t.Fatalf("tap during settle should be refused, got %v", err)
		}
	}
	timer.settle()
	timer.settle()
	for i := 0; i < 3; i++ {
		if err := f.TapContinue(); !errors.Is(err, ErrInvalidAdvance) {
			t.Fatalf("tap after submission should be refused, got %v", err)
		}
	}
	if sub.count() != 1 {
		t.Errorf("expected one submission, got %d", sub.count())
	}
	if err := f.Restart(); !errors.Is(err, ErrInvalidAdvance) {
		t.Errorf("restart after submission should be refused, got %v", err)
	}
}

func TestFlowSubmitErrorIsRecorded(t *testing.T) {
	cfg, err := NewConfig(threeScenes(), []Definition{{ID: 0, Kind: KindWelcome}}, WithSettleDelay(0))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	sub := &recordingSubmitter{err: errors.New("outbox unavailable")}
	f, err := New("s", cfg, nil, WithSubmitter(sub))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	_ = f.TapContinue()
	if err := f.TapContinue(); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	view := f.View()
	if view.Mode != models.ModeSubmitted {
		t.Fatalf("expected submitted, got %s", view.Mode)
	}
	if view.SubmitError != "outbox unavailable" {
		t.Errorf("expected recorded submit error, got %q", view.SubmitError)
	}
}

func TestFlowSelectStaleStepIsDropped(t *testing.T) {
	f, _ := newTestFlow(t, threeSteps(), nil)
	_ = f.TapContinue()
	if err := f.Select(1, "A"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("select for a future step should be refused, got %v", err)
	}
	if err := f.Select(0, "ignored"); err != nil {
		t.Fatalf("select on welcome: %v", err)
	}
	if err := f.Select(0, "again"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("select for a past step should be refused, got %v", err)
	}
	if got := f.View().Answers[0]; !got.Confirmed {
		t.Errorf("welcome should record a confirmation, got %+v", got)
	}
}

func TestFlowEventsRequireMatchingKind(t *testing.T) {
	f, _ := newTestFlow(t, fullSteps(), nil)
	if err := f.SubmitText("early"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("text on the reel should be refused, got %v", err)
	}
	if err := f.SetDraftText("early"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("draft on the reel should be refused, got %v", err)
	}
	_ = f.TapContinue()
	if err := f.SubmitContact("Ana", "555"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("contact on the welcome step should be refused, got %v", err)
	}

	steps := []func() error{
		f.TapContinue,
		func() error { return f.Select(1, "B") },
		f.TapContinue,
		func() error { return f.SubmitText("notes") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := f.Select(4, "x"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("select on contact step should be refused, got %v", err)
	}
	if err := f.SubmitContact("", "555"); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("contact without name should be refused, got %v", err)
	}
	if err := f.SubmitContact("Ana", "555"); err != nil {
		t.Fatalf("contact: %v", err)
	}
	if f.Mode() != models.ModeSubmitted {
		t.Errorf("expected submitted, got %s", f.Mode())
	}
}

func TestFlowRestartReturnsToReel(t *testing.T) {
	timer := newFakeTimer()
	f, _ := newTestFlow(t, threeSteps(), timer)
	_ = f.TapContinue()
	_ = f.TapContinue()
	if err := f.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if timer.count(false) != 0 {
		t.Error("restart left a pending settle behind")
	}
	if timer.count(true) != 1 {
		t.Errorf("expected a fresh reel clock, got %d subscriptions", timer.count(true))
	}
	view := f.View()
	if view.Mode != models.ModeTimeline || view.Index != 0 || len(view.Answers) != 0 {
		t.Errorf("restart did not reset state: %+v", view)
	}
}

func TestFlowCloseReleasesTimers(t *testing.T) {
	timer := newFakeTimer()
	f, _ := newTestFlow(t, threeSteps(), timer)
	f.Close()
	if timer.count(true) != 0 {
		t.Error("reel clock survived Close")
	}
	if err := f.TapContinue(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestFlowOnChangeAndProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []Snapshot
	f, _ := newTestFlow(t, threeSteps(), nil, WithOnChange(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	f.Observe(15 * time.Second)
	if p := f.View().Progress; p != 0.5 {
		t.Errorf("expected reel progress 0.5 at 15s, got %v", p)
	}
	_ = f.TapContinue()
	if p := f.View().Progress; p < 0.33 || p > 0.34 {
		t.Errorf("expected first step progress 1/3, got %v", p)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected two change notifications, got %d", len(seen))
	}
	if seen[1].Mode != models.ModeWizard {
		t.Errorf("last notification should show the wizard, got %s", seen[1].Mode)
	}
}

func TestFlowWithoutClockHoldsReel(t *testing.T) {
	f, _ := newTestFlow(t, threeSteps(), nil)
	if view := f.View(); view.Mode != models.ModeTimeline || view.Index != 0 {
		t.Fatalf("expected reel at scene 0, got %+v", view)
	}
	f.Observe(2 * time.Second)
	if f.View().Index != 1 {
		t.Error("externally observed time should still drive the reel")
	}
}

func TestFlowLastActivityTracksEvents(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f, _ := newTestFlow(t, threeSteps(), nil, WithClock(clock))
	if !f.LastActivity().Equal(now) {
		t.Fatalf("unexpected initial activity %v", f.LastActivity())
	}
	now = now.Add(time.Minute)
	_ = f.TapContinue()
	if !f.LastActivity().Equal(now) {
		t.Errorf("expected activity at %v, got %v", now, f.LastActivity())
	}
}

func TestFlowUpdateDraftMergesConcurrentFields(t *testing.T) {
	f, _ := newTestFlow(t, fullSteps(), nil)
	if err := f.UpdateDraft(func(d *Draft) { d.Name = "early" }); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("draft on the reel should be refused, got %v", err)
	}
	_ = f.TapContinue()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.UpdateDraft(func(d *Draft) { d.Name = "Ana" })
		}()
		go func() {
			defer wg.Done()
			_ = f.UpdateDraft(func(d *Draft) { d.Phone = "5512345678" })
		}()
	}
	wg.Wait()

	d := f.View().Draft
	if d.Name != "Ana" || d.Phone != "5512345678" {
		t.Errorf("concurrent draft updates lost a field: %+v", d)
	}
}
