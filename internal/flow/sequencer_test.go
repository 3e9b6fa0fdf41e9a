package flow

import (
	"errors"
	"testing"
)

func TestSequencerForwardOnly(t *testing.T) {
	seq := NewSequencer(fullSteps(), nil, 0)
	answers := []*Answer{
		nil,
		answerPtr(Choice("A")),
		nil,
		answerPtr(Text("notes")),
		answerPtr(ContactAnswer("Ana", "555")),
	}

	prev := seq.Index()
	for i, a := range answers {
		terminal, err := seq.Advance(a)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if seq.Index() < prev || seq.Index() > prev+1 {
			t.Fatalf("index moved from %d to %d", prev, seq.Index())
		}
		prev = seq.Index()
		if want := i == len(answers)-1; terminal != want {
			t.Fatalf("advance %d: terminal=%v, want %v", i, terminal, want)
		}
	}

	if seq.Index() != len(answers)-1 {
		t.Errorf("terminal index should stay on the last step, got %d", seq.Index())
	}
	if !seq.Transitioning() {
		t.Error("guard must stay set after the last step")
	}
	if _, err := seq.Advance(nil); !errors.Is(err, ErrInvalidAdvance) {
		t.Errorf("expected ErrInvalidAdvance after terminal, got %v", err)
	}
}

func TestSequencerNoDoubleAdvance(t *testing.T) {
	timer := newFakeTimer()
	seq := NewSequencer(threeSteps(), timer, DefaultSettleDelay)
	if _, err := seq.Advance(nil); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	timer.settle()

	if _, err := seq.Advance(answerPtr(Choice("A"))); err != nil {
		t.Fatalf("first choice: %v", err)
	}
	if !seq.Transitioning() {
		t.Fatal("expected transition in flight")
	}
	if _, err := seq.Advance(answerPtr(Choice("B"))); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("second choice during settle should be refused, got %v", err)
	}
	if seq.Index() != 1 {
		t.Fatalf("index must not move before settle, got %d", seq.Index())
	}
	if ran := timer.settle(); ran != 1 {
		t.Fatalf("expected exactly one settle callback, got %d", ran)
	}
	if seq.Index() != 2 {
		t.Errorf("expected exactly one increment, index %d", seq.Index())
	}
	if got, _ := seq.Answer(1); got.Value != "A" {
		t.Errorf("expected first write to win, got %q", got.Value)
	}
}

func TestSequencerValidityGating(t *testing.T) {
	t.Run("empty free text", func(t *testing.T) {
		seq := NewSequencer([]Definition{{ID: 0, Kind: KindFreeText}, {ID: 1, Kind: KindReflection}}, nil, 0)
		for _, a := range []*Answer{answerPtr(Text("")), answerPtr(Text("   ")), nil} {
			if _, err := seq.Advance(a); !errors.Is(err, ErrInvalidAdvance) {
				t.Fatalf("expected refusal, got %v", err)
			}
		}
		if seq.Index() != 0 || len(seq.Answers()) != 0 || seq.Transitioning() {
			t.Errorf("refused advance changed state: index=%d answers=%v", seq.Index(), seq.Answers())
		}
	})

	t.Run("contact without name", func(t *testing.T) {
		seq := NewSequencer([]Definition{{ID: 0, Kind: KindContact}, {ID: 1, Kind: KindReflection}}, nil, 0)
		if _, err := seq.Advance(answerPtr(ContactAnswer("", "555"))); !errors.Is(err, ErrInvalidAdvance) {
			t.Fatalf("expected refusal, got %v", err)
		}
		if _, err := seq.Advance(answerPtr(ContactAnswer("Ana", " "))); !errors.Is(err, ErrInvalidAdvance) {
			t.Fatalf("expected refusal for blank phone, got %v", err)
		}
		if seq.Index() != 0 || len(seq.Answers()) != 0 {
			t.Errorf("refused advance changed state: index=%d answers=%v", seq.Index(), seq.Answers())
		}
	})

	t.Run("choice needs a value", func(t *testing.T) {
		seq := NewSequencer([]Definition{{ID: 0, Kind: KindSingleChoice, Options: []string{"A"}}}, nil, 0)
		if _, err := seq.Advance(nil); !errors.Is(err, ErrInvalidAdvance) {
			t.Fatalf("expected refusal without option, got %v", err)
		}
		if _, err := seq.Advance(answerPtr(Text("A"))); !errors.Is(err, ErrInvalidAdvance) {
			t.Fatalf("expected refusal for wrong answer shape, got %v", err)
		}
		if _, err := seq.Advance(answerPtr(Choice("anything"))); err != nil {
			t.Fatalf("any supplied value should be accepted: %v", err)
		}
	})
}

func TestSequencerDraftSynthesis(t *testing.T) {
	seq := NewSequencer([]Definition{{ID: 0, Kind: KindFreeText}, {ID: 1, Kind: KindContact}}, nil, 0)
	seq.SetDraft(Draft{Text: "hello"})
	if _, err := seq.Advance(nil); err != nil {
		t.Fatalf("free text from draft: %v", err)
	}
	seq.SetDraft(Draft{Name: "Ana", Phone: "555"})
	terminal, err := seq.Advance(nil)
	if err != nil {
		t.Fatalf("contact from draft: %v", err)
	}
	if !terminal {
		t.Error("expected terminal after last step")
	}
	got, ok := seq.Answer(1)
	if !ok || got.Contact != (Contact{Name: "Ana", Phone: "555"}) {
		t.Errorf("unexpected contact answer %+v", got)
	}
}

func TestSequencerAccumulatorCompleteness(t *testing.T) {
	steps := fullSteps()
	seq := NewSequencer(steps, nil, 0)
	seq.SetDraft(Draft{Text: "t", Name: "n", Phone: "p"})
	for i := 0; i < len(steps); i++ {
		var a *Answer
		if steps[i].Kind == KindSingleChoice {
			a = answerPtr(Choice("B"))
		}
		if _, err := seq.Advance(a); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	snap := seq.Answers()
	for _, def := range steps {
		if _, ok := snap[def.ID]; RequiresAnswer(def.Kind) && !ok {
			t.Errorf("missing answer for step %d (%s)", def.ID, def.Kind)
		}
	}
}

func TestSequencerResetCancelsPendingSettle(t *testing.T) {
	timer := newFakeTimer()
	seq := NewSequencer(threeSteps(), timer, DefaultSettleDelay)
	if _, err := seq.Advance(nil); err != nil {
		t.Fatalf("advance: %v", err)
	}
	seq.Reset()
	if n := timer.count(false); n != 0 {
		t.Fatalf("expected pending settle to be cancelled, %d left", n)
	}
	if seq.Index() != 0 || seq.Transitioning() || seq.Terminal() || len(seq.Answers()) != 0 {
		t.Errorf("reset left state behind: index=%d answers=%v", seq.Index(), seq.Answers())
	}
}

func TestSequencerStaleSettleIgnored(t *testing.T) {
	seq := NewSequencer(threeSteps(), nil, 0)
	seq.transitioning = true
	seq.generation = 3
	seq.settled(2)
	if seq.Index() != 0 {
		t.Errorf("stale settle moved index to %d", seq.Index())
	}
}

func TestSequencerCloseRefusesUse(t *testing.T) {
	timer := newFakeTimer()
	seq := NewSequencer(threeSteps(), timer, DefaultSettleDelay)
	if _, err := seq.Advance(nil); err != nil {
		t.Fatalf("advance: %v", err)
	}
	seq.Close()
	if n := timer.count(false); n != 0 {
		t.Errorf("close left %d settle callbacks", n)
	}
	if _, err := seq.Current(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange after close, got %v", err)
	}
	if _, err := seq.Advance(nil); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange on advance after close, got %v", err)
	}
}

func TestAccumulatorSnapshotIsCopy(t *testing.T) {
	acc := NewAccumulator()
	acc.Set(0, Confirm(true))
	acc.Set(0, Confirm(false))
	if acc.Len() != 1 {
		t.Fatalf("overwrite should not add entries, len=%d", acc.Len())
	}
	snap := acc.Snapshot()
	snap[1] = Text("x")
	if _, ok := acc.Get(1); ok {
		t.Error("snapshot writes leaked into accumulator")
	}
	if got, _ := acc.Get(0); got.Confirmed {
		t.Error("expected overwritten value")
	}
}
