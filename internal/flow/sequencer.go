package flow

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultSettleDelay is the pause between an accepted advance and the next
// step becoming interactive.
const DefaultSettleDelay = 300 * time.Millisecond

// Sequencer owns the current index over an ordered definition list and the
// answers collected along it. It is not safe for concurrent use: the owner
// serializes every call, including the settle callbacks it receives through
// the injected Timer.
type Sequencer struct {
	defs   []Definition
	acc    *Accumulator
	timer  Timer
	settle time.Duration

	index         int
	transitioning bool
	terminal      bool
	closed        bool

	// pendingID is the cancellation id of the scheduled settle action.
	pendingID string
	// generation invalidates settle callbacks scheduled before a Reset or Close.
	generation uint64

	draft     Draft
	onSettled func(terminal bool)
}

// NewSequencer creates a sequencer positioned at index 0. defs must already
// be validated. A nil timer or a settle delay <= 0 completes every advance
// synchronously.
func NewSequencer(defs []Definition, timer Timer, settle time.Duration) *Sequencer {
	return &Sequencer{
		defs:   defs,
		acc:    NewAccumulator(),
		timer:  timer,
		settle: settle,
	}
}

// OnSettled registers a callback invoked each time a transition completes.
func (s *Sequencer) OnSettled(fn func(terminal bool)) {
	s.onSettled = fn
}

// Current returns the active definition.
func (s *Sequencer) Current() (Definition, error) {
	if s.closed || s.index < 0 || s.index >= len(s.defs) {
		return Definition{}, fmt.Errorf("%w: index %d of %d", ErrOutOfRange, s.index, len(s.defs))
	}
	return s.defs[s.index], nil
}

// Index returns the current position.
func (s *Sequencer) Index() int { return s.index }

// Len returns the number of definitions.
func (s *Sequencer) Len() int { return len(s.defs) }

// Transitioning reports whether an advance is settling.
func (s *Sequencer) Transitioning() bool { return s.transitioning }

// Terminal reports whether the sequence has finished.
func (s *Sequencer) Terminal() bool { return s.terminal }

// Answers returns a copy of the accumulated answers.
func (s *Sequencer) Answers() map[int]Answer { return s.acc.Snapshot() }

// Answer looks up the answer recorded for a step id.
func (s *Sequencer) Answer(id int) (Answer, bool) { return s.acc.Get(id) }

// Draft returns the pending renderer input.
func (s *Sequencer) Draft() Draft { return s.draft }

// SetDraft replaces the pending renderer input.
func (s *Sequencer) SetDraft(d Draft) { s.draft = d }

// Advance is the only mutator of the index. A nil answer is synthesized from
// the step kind and the draft. Refusals wrap ErrInvalidAdvance and leave the
// state untouched. The returned bool reports whether the sequence is terminal
// once the call has been applied.
func (s *Sequencer) Advance(answer *Answer) (bool, error) {
	if s.closed {
		return false, fmt.Errorf("%w: sequencer closed", ErrOutOfRange)
	}
	if s.transitioning {
		return s.terminal, fmt.Errorf("%w: transition in flight", ErrInvalidAdvance)
	}
	if s.terminal {
		return true, fmt.Errorf("%w: sequence finished", ErrInvalidAdvance)
	}

	def, err := s.Current()
	if err != nil {
		return false, err
	}

	if def.Kind != KindScene {
		h, ok := kindHandlers[def.Kind]
		if !ok {
			return false, fmt.Errorf("%w: step %d has unknown kind %q", ErrInvalidAdvance, def.ID, def.Kind)
		}
		a := answer
		if a == nil {
			if synth, ok := h.synthesize(s.draft); ok {
				a = &synth
			}
		}
		if a == nil {
			return false, fmt.Errorf("%w: step %d (%s) needs an answer", ErrInvalidAdvance, def.ID, def.Kind)
		}
		if !h.accepts(def, *a) {
			return false, fmt.Errorf("%w: answer does not satisfy step %d (%s)", ErrInvalidAdvance, def.ID, def.Kind)
		}
		s.acc.Set(def.ID, *a)
	}

	s.transitioning = true
	slog.Debug("Sequencer.Advance accepted", "index", s.index, "id", def.ID, "kind", def.Kind)

	if s.timer == nil || s.settle <= 0 {
		s.complete()
		return s.terminal, nil
	}

	gen := s.generation
	id, err := s.timer.ScheduleAfter(s.settle, func() { s.settled(gen) })
	if err != nil {
		slog.Warn("Sequencer.Advance: settle scheduling failed, completing now", "error", err)
		s.complete()
		return s.terminal, nil
	}
	s.pendingID = id
	return false, nil
}

func (s *Sequencer) settled(gen uint64) {
	if s.closed || gen != s.generation {
		slog.Debug("Sequencer: dropping stale settle callback", "generation", gen, "current", s.generation)
		return
	}
	s.pendingID = ""
	s.complete()
}

// complete finishes an in-flight transition. The guard stays set after the
// last step so the finished sequence refuses input forever.
func (s *Sequencer) complete() {
	if s.index < len(s.defs)-1 {
		s.index++
		s.transitioning = false
	} else {
		s.terminal = true
	}
	slog.Debug("Sequencer transition settled", "index", s.index, "terminal", s.terminal)
	if s.onSettled != nil {
		s.onSettled(s.terminal)
	}
}

// seek jumps forward to idx without recording an answer. Backward or
// out-of-range targets are ignored.
func (s *Sequencer) seek(idx int) bool {
	if s.closed || s.terminal || idx <= s.index || idx >= len(s.defs) {
		return false
	}
	s.index = idx
	return true
}

// finish freezes the sequence in its terminal state without moving the index.
func (s *Sequencer) finish() {
	s.cancelPending()
	s.generation++
	s.transitioning = true
	s.terminal = true
}

// Reset returns to index 0 with no answers and cancels any pending settle.
func (s *Sequencer) Reset() {
	s.cancelPending()
	s.generation++
	s.index = 0
	s.transitioning = false
	s.terminal = false
	s.closed = false
	s.draft = Draft{}
	s.acc.Clear()
}

// Close cancels any pending settle action. The sequencer refuses all further use.
func (s *Sequencer) Close() {
	s.cancelPending()
	s.generation++
	s.closed = true
}

func (s *Sequencer) cancelPending() {
	if s.pendingID == "" || s.timer == nil {
		return
	}
	if err := s.timer.Cancel(s.pendingID); err != nil {
		slog.Warn("Sequencer: cancel settle failed", "id", s.pendingID, "error", err)
	}
	s.pendingID = ""
}
