package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/models"
)

// timerEntry tracks a scheduled one-shot or repeating callback.
type timerEntry struct {
	timer       *time.Timer
	ticker      *time.Ticker
	done        chan struct{}
	scheduledAt time.Time
	expiresAt   time.Time
	interval    time.Duration
	description string
}

func (e *timerEntry) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.ticker != nil {
		e.ticker.Stop()
		close(e.done)
	}
}

// SimpleTimer implements Timer on top of time.AfterFunc and time.Ticker.
// One SimpleTimer can be shared by every flow in the process.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.RWMutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

func (t *SimpleTimer) newID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return fmt.Sprintf("timer_%d", t.nextID)
}

// ScheduleAfter runs fn once after delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("schedule after: nil callback")
	}
	id := t.newID()
	slog.Debug("SimpleTimer ScheduleAfter", "id", id, "delay", delay)

	now := time.Now()
	entry := &timerEntry{
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: fmt.Sprintf("one-shot after %v", delay),
	}

	// Registering before arming keeps the cleanup in the callback from racing the insert.
	t.mu.Lock()
	t.timers[id] = entry
	entry.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if !live {
			return
		}
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
	})
	t.mu.Unlock()

	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay)
	return id, nil
}

// ScheduleEvery runs fn every interval until the returned id is cancelled.
func (t *SimpleTimer) ScheduleEvery(interval time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("schedule every: nil callback")
	}
	if interval <= 0 {
		return "", fmt.Errorf("schedule every: interval must be positive, got %v", interval)
	}
	id := t.newID()
	slog.Debug("SimpleTimer ScheduleEvery", "id", id, "interval", interval)

	now := time.Now()
	entry := &timerEntry{
		ticker:      time.NewTicker(interval),
		done:        make(chan struct{}),
		scheduledAt: now,
		expiresAt:   now.Add(interval),
		interval:    interval,
		description: fmt.Sprintf("every %v", interval),
	}

	t.mu.Lock()
	t.timers[id] = entry
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-entry.done:
				return
			case at := <-entry.ticker.C:
				t.mu.Lock()
				live := t.timers[id] == entry
				if live {
					entry.expiresAt = at.Add(interval)
				}
				t.mu.Unlock()
				if !live {
					return
				}
				fn()
			}
		}
	}()

	slog.Debug("SimpleTimer ScheduleEvery succeeded", "id", id, "interval", interval)
	return id, nil
}

// Cancel stops a scheduled callback. Unknown ids are ignored.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
		return nil
	}

	slog.Debug("SimpleTimer Cancel: timer not found", "id", id)
	return nil
}

// Stop cancels all scheduled callbacks.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("SimpleTimer stopping all timers", "count", len(t.timers))
	for id, entry := range t.timers {
		entry.stop()
		slog.Debug("SimpleTimer stopped timer", "id", id)
	}
	t.timers = make(map[string]*timerEntry)
	slog.Info("SimpleTimer stopped all timers")
}

// ListActive returns information about all active callbacks.
func (t *SimpleTimer) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.TimerInfo, 0, len(t.timers))
	now := time.Now()
	for id, entry := range t.timers {
		result = append(result, entry.info(id, now))
	}

	slog.Debug("SimpleTimer ListActive", "count", len(result))
	return result
}

// GetTimer returns information about a specific callback by id.
func (t *SimpleTimer) GetTimer(id string) (*models.TimerInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.timers[id]
	if !exists {
		return nil, fmt.Errorf("timer with ID %s not found", id)
	}
	info := entry.info(id, time.Now())
	return &info, nil
}

func (e *timerEntry) info(id string, now time.Time) models.TimerInfo {
	remaining := e.expiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return models.TimerInfo{
		ID:          id,
		ScheduledAt: e.scheduledAt,
		ExpiresAt:   e.expiresAt,
		Remaining:   remaining.String(),
		Repeating:   e.ticker != nil,
		Description: e.description,
	}
}
