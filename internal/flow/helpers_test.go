package flow

import (
	"fmt"
	"sync"
	"time"
)

// fakeTimer captures callbacks so tests decide when settles and ticks happen.
type fakeTimer struct {
	mu      sync.Mutex
	nextID  int
	entries map[string]*fakeEntry
}

type fakeEntry struct {
	fn    func()
	every bool
	delay time.Duration
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{entries: make(map[string]*fakeEntry)}
}

func (t *fakeTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	return t.add(&fakeEntry{fn: fn, delay: delay}), nil
}

func (t *fakeTimer) ScheduleEvery(interval time.Duration, fn func()) (string, error) {
	return t.add(&fakeEntry{fn: fn, every: true, delay: interval}), nil
}

func (t *fakeTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
	return nil
}

func (t *fakeTimer) add(e *fakeEntry) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("fake_%d", t.nextID)
	t.entries[id] = e
	return id
}

// settle fires every pending one-shot callback and reports how many ran.
func (t *fakeTimer) settle() int {
	t.mu.Lock()
	var fns []func()
	for id, e := range t.entries {
		if !e.every {
			fns = append(fns, e.fn)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// tick fires every repeating callback once.
func (t *fakeTimer) tick() {
	t.mu.Lock()
	var fns []func()
	for _, e := range t.entries {
		if e.every {
			fns = append(fns, e.fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (t *fakeTimer) count(every bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.every == every {
			n++
		}
	}
	return n
}

func scene(id int, tag string, start, end time.Duration) Definition {
	return Definition{ID: id, Kind: KindScene, Tag: tag, Window: &Window{Start: start, End: end}}
}

// threeScenes has windows [0,2), [2,4), [4,inf).
func threeScenes() []Definition {
	return []Definition{
		scene(0, "start", 0, 2*time.Second),
		scene(1, "chaos", 2*time.Second, 4*time.Second),
		scene(2, "cta", 4*time.Second, Forever),
	}
}

// reelScenes mirrors the builtin reel: ten bounded beats and an open call to action.
func reelScenes() []Definition {
	bounds := []int{0, 2, 4, 6, 8, 10, 13, 16, 19, 22, 25}
	defs := make([]Definition, len(bounds))
	for i, start := range bounds {
		end := Forever
		if i+1 < len(bounds) {
			end = time.Duration(bounds[i+1]) * time.Second
		}
		defs[i] = scene(i, fmt.Sprintf("beat-%d", i), time.Duration(start)*time.Second, end)
	}
	return defs
}

// threeSteps is [welcome, single-choice(A, B), free-text].
func threeSteps() []Definition {
	return []Definition{
		{ID: 0, Kind: KindWelcome, Prompt: "hi"},
		{ID: 1, Kind: KindSingleChoice, Prompt: "pick", Options: []string{"A", "B"}},
		{ID: 2, Kind: KindFreeText, Prompt: "say", InputHint: "type here"},
	}
}

// fullSteps covers every step kind.
func fullSteps() []Definition {
	return []Definition{
		{ID: 0, Kind: KindWelcome},
		{ID: 1, Kind: KindSingleChoice, Options: []string{"A", "B"}},
		{ID: 2, Kind: KindReflection},
		{ID: 3, Kind: KindFreeText},
		{ID: 4, Kind: KindContact},
	}
}

func answerPtr(a Answer) *Answer { return &a }
