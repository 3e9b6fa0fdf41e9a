package flow

// Accumulator maps step ids to answers. Writes overwrite; nothing is removed
// during a flow. It is owned by exactly one sequencer and shares its
// serialization.
type Accumulator struct {
	answers map[int]Answer
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{answers: make(map[int]Answer)}
}

// Set inserts or overwrites the answer for id. It performs no validation.
func (a *Accumulator) Set(id int, value Answer) {
	a.answers[id] = value
}

// Get returns the answer for id. A missing entry is an expected result mid-flow.
func (a *Accumulator) Get(id int) (Answer, bool) {
	v, ok := a.answers[id]
	return v, ok
}

// Len returns the number of recorded answers.
func (a *Accumulator) Len() int {
	return len(a.answers)
}

// Snapshot returns a copy of every recorded answer.
func (a *Accumulator) Snapshot() map[int]Answer {
	out := make(map[int]Answer, len(a.answers))
	for id, v := range a.answers {
		out[id] = v
	}
	return out
}

// Clear drops every answer. Only a sequencer reset uses it.
func (a *Accumulator) Clear() {
	a.answers = make(map[int]Answer)
}
