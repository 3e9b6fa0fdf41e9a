package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/models"
	"github.com/BTreeMap/ReelPipe/internal/scheduler"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig(t *testing.T) *flow.Config {
	t.Helper()
	scenes := []flow.Definition{
		{ID: 0, Kind: flow.KindScene, Tag: "start", Window: &flow.Window{Start: 0, End: 2 * time.Second}},
		{ID: 1, Kind: flow.KindScene, Tag: "cta", Window: &flow.Window{Start: 2 * time.Second, End: flow.Forever}},
	}
	steps := []flow.Definition{
		{ID: 0, Kind: flow.KindWelcome},
		{ID: 1, Kind: flow.KindSingleChoice, Options: []string{"a", "b"}},
	}
	cfg, err := flow.NewConfig(scenes, steps, flow.WithSettleDelay(0))
	require.NoError(t, err)
	return cfg
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s-%d", n)
	}
}

func TestManagerCreateGetDelete(t *testing.T) {
	m := NewManager(testConfig(t), nil)
	defer m.Close()

	id, f, err := m.Create()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, models.ModeTimeline, f.Mode())
	require.Equal(t, 1, m.Len())

	got, err := m.Get(id)
	require.NoError(t, err)
	require.Same(t, f, got)

	require.NoError(t, m.Delete(id))
	require.Equal(t, 0, m.Len())
	require.ErrorIs(t, m.Delete(id), models.ErrSessionNotFound)
	_, err = m.Get(id)
	require.ErrorIs(t, err, models.ErrSessionNotFound)

	require.ErrorIs(t, f.TapContinue(), flow.ErrClosed, "deleted flows refuse events")
}

func TestManagerUsesUUIDs(t *testing.T) {
	m := NewManager(testConfig(t), nil)
	defer m.Close()

	a, _, err := m.Create()
	require.NoError(t, err)
	b, _, err := m.Create()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 36)
}

func TestManagerRejectsDuplicateIDs(t *testing.T) {
	m := NewManager(testConfig(t), nil, WithIDGenerator(func() string { return "same" }))
	defer m.Close()

	_, _, err := m.Create()
	require.NoError(t, err)
	_, _, err = m.Create()
	require.Error(t, err)
	require.Equal(t, 1, m.Len())
}

func TestManagerReapIdle(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(testConfig(t), nil,
		WithTTL(10*time.Minute),
		WithIDGenerator(sequentialIDs()),
		WithFlowOptions(flow.WithClock(clock.Now)),
	)
	defer m.Close()

	idle, idleFlow, err := m.Create()
	require.NoError(t, err)
	busy, _, err := m.Create()
	require.NoError(t, err)

	clock.Add(8 * time.Minute)
	busyFlow, err := m.Get(busy)
	require.NoError(t, err)
	require.NoError(t, busyFlow.TapContinue())

	require.Equal(t, 1, m.ReapIdle(clock.Now().Add(3*time.Minute)))
	require.Equal(t, []string{busy}, m.IDs())

	_, err = m.Get(idle)
	require.ErrorIs(t, err, models.ErrSessionNotFound)
	require.ErrorIs(t, idleFlow.TapContinue(), flow.ErrClosed)

	require.Equal(t, 0, m.ReapIdle(clock.Now()))
}

func TestManagerSharesSubmitter(t *testing.T) {
	var mu sync.Mutex
	submitted := map[string]int{}
	sub := flow.SubmitterFunc(func(_ context.Context, id string, answers map[int]flow.Answer) error {
		mu.Lock()
		submitted[id] = len(answers)
		mu.Unlock()
		return nil
	})
	m := NewManager(testConfig(t), nil, WithIDGenerator(sequentialIDs()), WithFlowOptions(flow.WithSubmitter(sub)))
	defer m.Close()

	id, f, err := m.Create()
	require.NoError(t, err)
	require.NoError(t, f.TapContinue())
	require.NoError(t, f.TapContinue())
	require.NoError(t, f.Select(1, "b"))
	require.Equal(t, models.ModeSubmitted, f.Mode())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, map[string]int{id: 2}, submitted)
}

func TestManagerReaperJob(t *testing.T) {
	s := scheduler.NewScheduler()
	defer s.Stop()

	m := NewManager(testConfig(t), nil)
	require.NoError(t, m.StartReaper(s, ""))
	require.Equal(t, 1, s.Len())

	m.Close()
	require.Equal(t, 0, s.Len())

	m2 := NewManager(testConfig(t), nil)
	defer m2.Close()
	require.Error(t, m2.StartReaper(s, "every tuesday"))
}
