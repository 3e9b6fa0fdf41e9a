package flow

import (
	"log/slog"
	"time"
)

// DefaultTickInterval is the reel clock resolution.
const DefaultTickInterval = time.Second

// TimelineDriver moves a scene sequencer by elapsed time instead of by
// events. It owns the tick subscription for as long as the reel is active.
type TimelineDriver struct {
	seq     *Sequencer
	timer   Timer
	tick    time.Duration
	elapsed time.Duration
	tickID  string
	running bool
}

// NewTimelineDriver creates a driver over validated scenes. The scene
// sequencer never settles; index changes are immediate.
func NewTimelineDriver(scenes []Definition, timer Timer, tick time.Duration) *TimelineDriver {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &TimelineDriver{
		seq:   NewSequencer(scenes, nil, 0),
		timer: timer,
		tick:  tick,
	}
}

// Start subscribes to the clock. Without a timer the reel simply holds its
// current scene until Observe is called.
func (d *TimelineDriver) Start() error {
	if d.running {
		return nil
	}
	if d.timer == nil {
		slog.Warn("TimelineDriver.Start: no clock available, reel will not advance on its own")
		return nil
	}
	id, err := d.timer.ScheduleEvery(d.tick, d.Tick)
	if err != nil {
		return err
	}
	d.tickID = id
	d.running = true
	slog.Debug("TimelineDriver started", "tickID", id, "interval", d.tick)
	return nil
}

// Stop cancels the tick subscription. It is safe to call more than once.
func (d *TimelineDriver) Stop() {
	if !d.running {
		return
	}
	if err := d.timer.Cancel(d.tickID); err != nil {
		slog.Warn("TimelineDriver.Stop: cancel tick failed", "tickID", d.tickID, "error", err)
	}
	slog.Debug("TimelineDriver stopped", "tickID", d.tickID, "elapsed", d.elapsed)
	d.tickID = ""
	d.running = false
}

// Running reports whether the driver holds a tick subscription.
func (d *TimelineDriver) Running() bool { return d.running }

// Tick advances the clock by one interval.
func (d *TimelineDriver) Tick() {
	if d.seq.Terminal() {
		return
	}
	d.Observe(d.elapsed + d.tick)
}

// Observe moves the reel to the scene containing elapsed. Elapsed time never
// goes backwards and neither does the scene. It reports whether the scene changed.
func (d *TimelineDriver) Observe(elapsed time.Duration) bool {
	if d.seq.Terminal() {
		return false
	}
	if elapsed > d.elapsed {
		d.elapsed = elapsed
	}
	from := d.seq.Index()
	if !d.seq.seek(SceneIndexAt(d.seq.defs, d.elapsed)) {
		return false
	}
	slog.Debug("TimelineDriver scene changed", "from", from, "to", d.seq.Index(), "elapsed", d.elapsed)
	return true
}

// Continue is the forced exit: it stops the clock and freezes the reel
// wherever it is. It reports false if the reel had already been exited.
func (d *TimelineDriver) Continue() bool {
	if d.seq.Terminal() {
		return false
	}
	d.Stop()
	d.seq.finish()
	slog.Debug("TimelineDriver forced exit", "index", d.seq.Index(), "elapsed", d.elapsed)
	return true
}

// Current returns the active scene.
func (d *TimelineDriver) Current() (Definition, error) { return d.seq.Current() }

// Index returns the active scene position.
func (d *TimelineDriver) Index() int { return d.seq.Index() }

// Len returns the number of scenes.
func (d *TimelineDriver) Len() int { return d.seq.Len() }

// Elapsed returns the reel clock.
func (d *TimelineDriver) Elapsed() time.Duration { return d.elapsed }

// Exited reports whether Continue was called.
func (d *TimelineDriver) Exited() bool { return d.seq.Terminal() }

// Close releases the tick subscription and the scene sequencer.
func (d *TimelineDriver) Close() {
	d.Stop()
	d.seq.Close()
}
