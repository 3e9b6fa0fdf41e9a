package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/models"
)

// ErrClosed is returned by events sent to a flow that has been torn down.
var ErrClosed = errors.New("flow closed")

// phase is the tagged union of per-mode state. Exactly one is live.
type phase interface {
	mode() models.Mode
}

type timelinePhase struct {
	driver *TimelineDriver
}

type wizardPhase struct {
	seq *Sequencer
}

type submittedPhase struct {
	answers     map[int]Answer
	submittedAt time.Time
}

func (timelinePhase) mode() models.Mode  { return models.ModeTimeline }
func (wizardPhase) mode() models.Mode    { return models.ModeWizard }
func (submittedPhase) mode() models.Mode { return models.ModeSubmitted }

// Snapshot is the read-only view handed to renderers.
type Snapshot struct {
	SessionID      string         `json:"session_id"`
	Mode           models.Mode    `json:"mode"`
	Definition     *Definition    `json:"definition,omitempty"`
	Index          int            `json:"index"`
	Total          int            `json:"total"`
	Elapsed        time.Duration  `json:"-"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Answers        map[int]Answer `json:"answers"`
	Terminal       bool           `json:"terminal"`
	Transitioning  bool           `json:"transitioning"`
	Progress       float64        `json:"progress"`
	Draft          Draft          `json:"draft"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	SubmitError    string         `json:"submit_error,omitempty"`
}

// Option configures a Flow.
type Option func(*Flow)

// WithSubmitter sets the submission boundary.
func WithSubmitter(s Submitter) Option {
	return func(f *Flow) { f.submitter = s }
}

// WithOnChange registers an observer called after every applied state
// change, outside the flow's lock.
func WithOnChange(fn func(Snapshot)) Option {
	return func(f *Flow) { f.onChange = fn }
}

// WithClock overrides the wall clock used for activity and submission stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// Flow composes the reel and the questionnaire for one session:
// TIMELINE_ACTIVE, then WIZARD_ACTIVE, then SUBMITTED. Events, clock ticks
// and settle completions are serialized by one mutex.
type Flow struct {
	mu sync.Mutex

	id        string
	cfg       *Config
	timer     Timer
	submitter Submitter
	onChange  func(Snapshot)
	now       func() time.Time

	phase        phase
	lastActivity time.Time
	closed       bool
	submitErr    error

	// pendingSubmit carries the final snapshot from the transition into
	// SUBMITTED to the call made once the lock is released.
	pendingSubmit map[int]Answer
}

// New starts a flow in TIMELINE_ACTIVE. timer may be nil, in which case the
// reel only moves through Observe and every settle is synchronous.
func New(id string, cfg *Config, timer Timer, opts ...Option) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("flow %s: nil config", id)
	}
	f := &Flow{
		id:    id,
		cfg:   cfg,
		timer: timer,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastActivity = f.now()

	f.mu.Lock()
	err := f.enterTimeline()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	slog.Info("Flow started", "sessionID", id, "config", cfg.Name())
	return f, nil
}

// ID returns the session id.
func (f *Flow) ID() string { return f.id }

// Mode returns the current mode.
func (f *Flow) Mode() models.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase.mode()
}

// LastActivity returns the time of the last renderer event.
func (f *Flow) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActivity
}

// View returns the current snapshot.
func (f *Flow) View() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

// TapContinue is the generic "next" gesture: the forced exit on the reel,
// advance-with-draft in the questionnaire.
func (f *Flow) TapContinue() error {
	return f.event("TapContinue", func() error {
		switch p := f.phase.(type) {
		case timelinePhase:
			return f.exitTimeline(p)
		case wizardPhase:
			_, err := p.seq.Advance(nil)
			return err
		default:
			return f.refuseSubmitted()
		}
	})
}

// Advance feeds an explicit answer (or nil to synthesize one) to the current
// phase. On the reel it is the forced exit and the answer is ignored.
func (f *Flow) Advance(answer *Answer) error {
	return f.event("Advance", func() error {
		switch p := f.phase.(type) {
		case timelinePhase:
			return f.exitTimeline(p)
		case wizardPhase:
			_, err := p.seq.Advance(answer)
			return err
		default:
			return f.refuseSubmitted()
		}
	})
}

// Select answers the step with stepID. Events for any other step are stale
// and dropped. On the reel, select behaves like continue.
func (f *Flow) Select(stepID int, value string) error {
	return f.event("Select", func() error {
		switch p := f.phase.(type) {
		case timelinePhase:
			return f.exitTimeline(p)
		case wizardPhase:
			if stepID != p.seq.Index() {
				return fmt.Errorf("%w: select for step %d while step %d is active", ErrInvalidAdvance, stepID, p.seq.Index())
			}
			def, err := p.seq.Current()
			if err != nil {
				return err
			}
			a, ok := answerForValue(def, value)
			if !ok {
				return fmt.Errorf("%w: step %d (%s) does not take a selected value", ErrInvalidAdvance, def.ID, def.Kind)
			}
			_, err = p.seq.Advance(&a)
			return err
		default:
			return f.refuseSubmitted()
		}
	})
}

// SubmitText answers the current free-text step.
func (f *Flow) SubmitText(text string) error {
	return f.event("SubmitText", func() error {
		p, err := f.wizardFor(KindFreeText)
		if err != nil {
			return err
		}
		d := p.seq.Draft()
		d.Text = text
		p.seq.SetDraft(d)
		a := Text(text)
		_, err = p.seq.Advance(&a)
		return err
	})
}

// SubmitContact answers the current contact-capture step.
func (f *Flow) SubmitContact(name, phone string) error {
	return f.event("SubmitContact", func() error {
		p, err := f.wizardFor(KindContact)
		if err != nil {
			return err
		}
		d := p.seq.Draft()
		d.Name, d.Phone = name, phone
		p.seq.SetDraft(d)
		a := ContactAnswer(name, phone)
		_, err = p.seq.Advance(&a)
		return err
	})
}

// SetDraftText records typed but unsubmitted free text.
func (f *Flow) SetDraftText(text string) error {
	return f.draftEvent(func(d *Draft) { d.Text = text })
}

// SetDraftContact records typed but unsubmitted contact fields.
func (f *Flow) SetDraftContact(name, phone string) error {
	return f.draftEvent(func(d *Draft) { d.Name, d.Phone = name, phone })
}

// UpdateDraft applies update to the draft input in one step, so fields set
// by concurrent callers are merged.
func (f *Flow) UpdateDraft(update func(*Draft)) error {
	return f.draftEvent(update)
}

// Observe moves the reel to the scene for an externally measured elapsed
// time. Outside the reel it does nothing.
func (f *Flow) Observe(elapsed time.Duration) {
	f.do(func() bool {
		p, ok := f.phase.(timelinePhase)
		if !ok {
			return false
		}
		return p.driver.Observe(elapsed)
	})
}

// Restart discards all state and starts again from the reel. A submitted
// flow cannot be restarted.
func (f *Flow) Restart() error {
	return f.event("Restart", func() error {
		if _, ok := f.phase.(submittedPhase); ok {
			return f.refuseSubmitted()
		}
		f.teardownPhase()
		return f.enterTimeline()
	})
}

// Close cancels the reel clock and any pending settle. Later events return ErrClosed.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.teardownPhase()
	f.closed = true
	slog.Debug("Flow closed", "sessionID", f.id, "mode", f.phase.mode())
}

// event runs a renderer event under the lock and stamps activity.
func (f *Flow) event(name string, fn func() error) error {
	result := ErrClosed
	f.do(func() bool {
		slog.Debug("Flow."+name+" invoked", "sessionID", f.id, "mode", f.phase.mode())
		f.lastActivity = f.now()
		result = fn()
		if result != nil {
			if errors.Is(result, ErrInvalidAdvance) {
				slog.Warn("Flow."+name+" not accepted", "sessionID", f.id, "mode", f.phase.mode(), "reason", result)
			}
			return false
		}
		slog.Debug("Flow."+name+" succeeded", "sessionID", f.id, "mode", f.phase.mode())
		return true
	})
	return result
}

// do runs fn under the lock, then notifies the observer and performs any
// pending submission without holding it.
func (f *Flow) do(fn func() bool) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	changed := fn()
	submit := f.pendingSubmit
	f.pendingSubmit = nil
	var snap Snapshot
	if changed || submit != nil {
		snap = f.viewLocked()
	}
	observer := f.onChange
	f.mu.Unlock()

	if submit != nil {
		f.submit(submit)
		f.mu.Lock()
		snap = f.viewLocked()
		f.mu.Unlock()
	}
	if (changed || submit != nil) && observer != nil {
		observer(snap)
	}
}

func (f *Flow) submit(answers map[int]Answer) {
	if f.submitter == nil {
		slog.Info("Flow submitted without a submitter", "sessionID", f.id, "answers", len(answers))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.submitTimeout)
	defer cancel()

	slog.Debug("Flow.submit invoked", "sessionID", f.id, "answers", len(answers))
	err := f.submitter.Submit(ctx, f.id, answers)

	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
	if err != nil {
		slog.Error("Flow.submit failed", "sessionID", f.id, "error", err)
		return
	}
	slog.Info("Flow submitted", "sessionID", f.id, "answers", len(answers))
}

func (f *Flow) enterTimeline() error {
	driver := NewTimelineDriver(f.cfg.scenes, f.serialTimer(), f.cfg.tick)
	if err := driver.Start(); err != nil {
		return fmt.Errorf("start reel clock: %w", err)
	}
	f.phase = timelinePhase{driver: driver}
	slog.Debug("Flow entered timeline", "sessionID", f.id)
	return nil
}

func (f *Flow) exitTimeline(p timelinePhase) error {
	if !p.driver.Continue() {
		return fmt.Errorf("%w: reel already exited", ErrInvalidAdvance)
	}
	p.driver.Close()
	f.enterWizard()
	return nil
}

func (f *Flow) enterWizard() {
	seq := NewSequencer(f.cfg.steps, f.serialTimer(), f.cfg.settle)
	seq.OnSettled(func(terminal bool) {
		if terminal {
			f.enterSubmitted(seq)
		}
	})
	f.phase = wizardPhase{seq: seq}
	slog.Info("Flow entered questionnaire", "sessionID", f.id, "steps", seq.Len())
}

// enterSubmitted is the single WIZARD_ACTIVE to SUBMITTED transition. It runs
// at most once per wizard because the sequencer reports terminal once.
func (f *Flow) enterSubmitted(seq *Sequencer) {
	if _, ok := f.phase.(wizardPhase); !ok {
		return
	}
	answers := seq.Answers()
	seq.Close()
	f.phase = submittedPhase{answers: answers, submittedAt: f.now()}
	f.pendingSubmit = answers
	slog.Info("Flow entered submitted", "sessionID", f.id, "answers", len(answers))
}

func (f *Flow) teardownPhase() {
	switch p := f.phase.(type) {
	case timelinePhase:
		p.driver.Close()
	case wizardPhase:
		p.seq.Close()
	}
}

func (f *Flow) wizardFor(kind Kind) (wizardPhase, error) {
	switch p := f.phase.(type) {
	case wizardPhase:
		def, err := p.seq.Current()
		if err != nil {
			return p, err
		}
		if def.Kind != kind {
			return p, fmt.Errorf("%w: step %d is %s, not %s", ErrInvalidAdvance, def.ID, def.Kind, kind)
		}
		return p, nil
	case submittedPhase:
		return wizardPhase{}, f.refuseSubmitted()
	default:
		return wizardPhase{}, fmt.Errorf("%w: %s event outside the questionnaire", ErrInvalidAdvance, kind)
	}
}

func (f *Flow) draftEvent(update func(*Draft)) error {
	result := ErrClosed
	f.do(func() bool {
		result = nil
		p, ok := f.phase.(wizardPhase)
		if !ok {
			result = fmt.Errorf("%w: draft input outside the questionnaire", ErrInvalidAdvance)
			return false
		}
		d := p.seq.Draft()
		update(&d)
		p.seq.SetDraft(d)
		f.lastActivity = f.now()
		return false
	})
	return result
}

func (f *Flow) refuseSubmitted() error {
	return fmt.Errorf("%w: flow already submitted", ErrInvalidAdvance)
}

func (f *Flow) viewLocked() Snapshot {
	snap := Snapshot{
		SessionID: f.id,
		Mode:      f.phase.mode(),
		Answers:   map[int]Answer{},
	}
	if f.submitErr != nil {
		snap.SubmitError = f.submitErr.Error()
	}
	switch p := f.phase.(type) {
	case timelinePhase:
		if def, err := p.driver.Current(); err == nil {
			snap.Definition = &def
		}
		snap.Index = p.driver.Index()
		snap.Total = p.driver.Len()
		snap.Elapsed = p.driver.Elapsed()
		snap.Progress = float64(snap.Elapsed) / float64(f.cfg.reelLength)
		if snap.Progress > 1 {
			snap.Progress = 1
		}
	case wizardPhase:
		if def, err := p.seq.Current(); err == nil {
			snap.Definition = &def
		}
		snap.Index = p.seq.Index()
		snap.Total = p.seq.Len()
		snap.Answers = p.seq.Answers()
		snap.Terminal = p.seq.Terminal()
		snap.Transitioning = p.seq.Transitioning()
		snap.Draft = p.seq.Draft()
		snap.Progress = float64(snap.Index+1) / float64(snap.Total)
	case submittedPhase:
		snap.Index = len(f.cfg.steps)
		snap.Total = len(f.cfg.steps)
		for id, a := range p.answers {
			snap.Answers[id] = a
		}
		snap.Terminal = true
		snap.Transitioning = true
		snap.Progress = 1
		at := p.submittedAt
		snap.SubmittedAt = &at
	}
	snap.ElapsedSeconds = snap.Elapsed.Seconds()
	return snap
}

// flowTimer routes timer callbacks through the flow lock so ticks and settle
// completions are serialized with renderer events.
type flowTimer struct {
	f *Flow
}

func (f *Flow) serialTimer() Timer {
	if f.timer == nil {
		return nil
	}
	return flowTimer{f: f}
}

func (t flowTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	return t.f.timer.ScheduleAfter(delay, func() {
		t.f.do(func() bool {
			fn()
			return true
		})
	})
}

func (t flowTimer) ScheduleEvery(interval time.Duration, fn func()) (string, error) {
	return t.f.timer.ScheduleEvery(interval, func() {
		t.f.do(func() bool {
			fn()
			return true
		})
	})
}

func (t flowTimer) Cancel(id string) error {
	return t.f.timer.Cancel(id)
}
