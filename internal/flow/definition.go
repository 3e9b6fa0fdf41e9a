// Package flow implements the ReelPipe flow engine: a forward-only sequencer
// over immutable definitions, driven either by a one-second clock (the reel)
// or by discrete renderer events (the questionnaire).
package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind selects the behavior of a definition.
type Kind string

// Questionnaire step kinds.
const (
	KindWelcome      Kind = "welcome"
	KindSingleChoice Kind = "single-choice"
	KindFreeText     Kind = "free-text"
	KindReflection   Kind = "reflection-pause"
	KindContact      Kind = "contact-capture"
)

// KindScene marks a reel scene. Scenes carry a Window and a Tag instead of input semantics.
const KindScene Kind = "scene"

// Forever is the end offset of the open-ended final scene.
const Forever = time.Duration(math.MaxInt64)

var (
	// ErrOutOfRange is returned by Current when the sequencer is used after it was torn down.
	ErrOutOfRange = errors.New("sequencer index out of range")
	// ErrInvalidAdvance is returned when an advance is refused and absorbed as a no-op.
	ErrInvalidAdvance = errors.New("advance refused")
)

// ConfigurationError reports a definition list that violates the ordinal or window invariants.
type ConfigurationError struct {
	List   string // "steps" or "scenes"
	Index  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s configuration at position %d: %s", e.List, e.Index, e.Reason)
}

// Window is a half-open [Start, End) range of elapsed reel time.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Open reports whether the window has no upper bound.
func (w Window) Open() bool {
	return w.End == Forever
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Duration) bool {
	return t >= w.Start && t < w.End
}

// MarshalJSON renders the window in seconds; an open end is null.
func (w Window) MarshalJSON() ([]byte, error) {
	out := struct {
		Start float64  `json:"start_seconds"`
		End   *float64 `json:"end_seconds"`
	}{Start: w.Start.Seconds()}
	if !w.Open() {
		end := w.End.Seconds()
		out.End = &end
	}
	return json.Marshal(out)
}

// Definition describes one position in a sequence. Definitions are immutable
// once validated and are shared by every flow built from the same Config.
type Definition struct {
	ID         int      `json:"id"`
	Kind       Kind     `json:"kind"`
	Tag        string   `json:"tag,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
	Subtitle   string   `json:"subtitle,omitempty"`
	Options    []string `json:"options,omitempty"`
	InputHint  string   `json:"input_hint,omitempty"`
	ButtonText string   `json:"button_text,omitempty"`
	Window     *Window  `json:"window,omitempty"`
}

// IsStepKind reports whether k is one of the questionnaire kinds.
func IsStepKind(k Kind) bool {
	_, ok := kindHandlers[k]
	return ok
}

// ValidateSteps checks the questionnaire invariants: a non-empty, dense 0-based
// id sequence of known step kinds, and options on every single-choice step.
func ValidateSteps(steps []Definition) error {
	if len(steps) == 0 {
		return &ConfigurationError{List: "steps", Index: 0, Reason: "no steps defined"}
	}
	for i, def := range steps {
		if def.ID != i {
			return &ConfigurationError{List: "steps", Index: i, Reason: fmt.Sprintf("id %d breaks the dense ordinal sequence", def.ID)}
		}
		if !IsStepKind(def.Kind) {
			return &ConfigurationError{List: "steps", Index: i, Reason: fmt.Sprintf("unknown step kind %q", def.Kind)}
		}
		if def.Kind == KindSingleChoice {
			if len(def.Options) == 0 {
				return &ConfigurationError{List: "steps", Index: i, Reason: "single-choice step has no options"}
			}
			for _, opt := range def.Options {
				if strings.TrimSpace(opt) == "" {
					return &ConfigurationError{List: "steps", Index: i, Reason: "single-choice step has an empty option"}
				}
			}
		}
		if def.Window != nil {
			return &ConfigurationError{List: "steps", Index: i, Reason: "steps cannot declare a time window"}
		}
	}
	return nil
}

// ValidateScenes checks the reel invariants: dense ids, windows that start at
// zero, are contiguous and non-empty, and a final window that is open-ended.
func ValidateScenes(scenes []Definition) error {
	if len(scenes) == 0 {
		return &ConfigurationError{List: "scenes", Index: 0, Reason: "no scenes defined"}
	}
	var prevEnd time.Duration
	for i, def := range scenes {
		if def.ID != i {
			return &ConfigurationError{List: "scenes", Index: i, Reason: fmt.Sprintf("id %d breaks the dense ordinal sequence", def.ID)}
		}
		if def.Kind != KindScene {
			return &ConfigurationError{List: "scenes", Index: i, Reason: fmt.Sprintf("kind %q is not a scene", def.Kind)}
		}
		if def.Window == nil {
			return &ConfigurationError{List: "scenes", Index: i, Reason: "scene has no time window"}
		}
		w := *def.Window
		if w.Start != prevEnd {
			return &ConfigurationError{List: "scenes", Index: i, Reason: fmt.Sprintf("window starts at %s, expected %s", w.Start, prevEnd)}
		}
		last := i == len(scenes)-1
		if last && !w.Open() {
			return &ConfigurationError{List: "scenes", Index: i, Reason: "final scene must be open-ended"}
		}
		if !last && w.Open() {
			return &ConfigurationError{List: "scenes", Index: i, Reason: "only the final scene may be open-ended"}
		}
		if w.End <= w.Start {
			return &ConfigurationError{List: "scenes", Index: i, Reason: "window is empty"}
		}
		prevEnd = w.End
	}
	return nil
}

// SceneIndexAt returns the index of the scene whose window contains t.
// Times before zero map to the first scene.
func SceneIndexAt(scenes []Definition, t time.Duration) int {
	if t < 0 {
		return 0
	}
	for i, def := range scenes {
		if def.Window != nil && def.Window.Contains(t) {
			return i
		}
	}
	return len(scenes) - 1
}
