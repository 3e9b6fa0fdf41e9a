package flow

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimerScheduleAfterAndCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{}, 1)
	if _, err := timer.ScheduleAfter(10*time.Millisecond, func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("ScheduleAfter: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled function did not run")
	}

	var cancelled int32
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { atomic.StoreInt32(&cancelled, 1) })
	if err != nil {
		t.Fatalf("ScheduleAfter: %v", err)
	}
	info, err := timer.GetTimer(id)
	if err != nil || info.Repeating {
		t.Fatalf("unexpected timer info %+v, err %v", info, err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&cancelled) != 0 {
		t.Error("cancelled function ran")
	}
}

func TestSimpleTimerScheduleEvery(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var ticks int32
	id, err := timer.ScheduleEvery(5*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	if err != nil {
		t.Fatalf("ScheduleEvery: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&ticks) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&ticks) < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", atomic.LoadInt32(&ticks))
	}

	active := timer.ListActive()
	if len(active) != 1 || !active[0].Repeating {
		t.Fatalf("expected one repeating timer, got %+v", active)
	}

	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt32(&ticks)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&ticks) != after {
		t.Error("ticks continued after cancel")
	}

	if _, err := timer.ScheduleEvery(0, func() {}); err == nil {
		t.Error("expected error for non-positive interval")
	}
}
