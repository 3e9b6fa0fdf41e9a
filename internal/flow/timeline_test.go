package flow

import (
	"testing"
	"time"
)

func TestTimelineMonotonicity(t *testing.T) {
	scenes := reelScenes()
	timer := newFakeTimer()
	d := NewTimelineDriver(scenes, timer, time.Second)
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	prev := 0
	for sec := 0; sec <= 30; sec++ {
		if sec > 0 {
			timer.tick()
		}
		at := time.Duration(sec) * time.Second
		if d.Elapsed() != at {
			t.Fatalf("elapsed %v, want %v", d.Elapsed(), at)
		}
		want := -1
		for i, def := range scenes {
			if def.Window.Contains(at) {
				if want != -1 {
					t.Fatalf("t=%v lies in two windows", at)
				}
				want = i
			}
		}
		if d.Index() != want {
			t.Errorf("t=%ds: scene %d, want %d", sec, d.Index(), want)
		}
		if d.Index() < prev {
			t.Errorf("t=%ds: scene regressed from %d to %d", sec, prev, d.Index())
		}
		prev = d.Index()
	}
	if d.Index() != len(scenes)-1 {
		t.Errorf("final scene not held, index %d", d.Index())
	}
}

func TestTimelineObserveNeverRegresses(t *testing.T) {
	d := NewTimelineDriver(threeScenes(), nil, time.Second)
	if !d.Observe(3 * time.Second) {
		t.Fatal("expected scene change at t=3")
	}
	if d.Observe(time.Second) {
		t.Error("observing an earlier time must not change the scene")
	}
	if d.Index() != 1 || d.Elapsed() != 3*time.Second {
		t.Errorf("regressed to index %d elapsed %v", d.Index(), d.Elapsed())
	}
	if !d.Observe(10 * time.Minute) {
		t.Error("expected jump to the open scene")
	}
	if d.Observe(time.Hour) {
		t.Error("open scene should be held without further changes")
	}
}

func TestTimelineSkipsWithCoarseTicks(t *testing.T) {
	timer := newFakeTimer()
	d := NewTimelineDriver(threeScenes(), timer, 5*time.Second)
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	timer.tick()
	if d.Index() != 2 {
		t.Errorf("expected a jump straight to scene 2, got %d", d.Index())
	}
}

func TestTimelineWithoutClockHolds(t *testing.T) {
	d := NewTimelineDriver(threeScenes(), nil, time.Second)
	if err := d.Start(); err != nil {
		t.Fatalf("start without clock should not fail: %v", err)
	}
	if d.Running() {
		t.Error("driver without clock should not report running")
	}
	if d.Index() != 0 {
		t.Errorf("expected to hold scene 0, got %d", d.Index())
	}
}

func TestTimelineContinueStopsClock(t *testing.T) {
	timer := newFakeTimer()
	d := NewTimelineDriver(threeScenes(), timer, time.Second)
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	timer.tick()
	timer.tick()
	if !d.Continue() {
		t.Fatal("expected forced exit")
	}
	if timer.count(true) != 0 {
		t.Error("tick subscription survived the forced exit")
	}
	if d.Continue() {
		t.Error("second forced exit should report false")
	}
	if d.Observe(time.Hour) || d.Index() != 1 {
		t.Errorf("exited reel must stay frozen, index %d", d.Index())
	}
	if !d.Exited() {
		t.Error("expected Exited after Continue")
	}
}
