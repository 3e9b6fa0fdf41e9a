package flow

import (
	"context"
	"time"
)

// Timer schedules callbacks. Flows never create timers of their own; the
// host injects one, and the flow cancels what it scheduled on phase exit.
type Timer interface {
	// ScheduleAfter runs fn once after delay and returns a cancellation id.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)
	// ScheduleEvery runs fn every interval until cancelled.
	ScheduleEvery(interval time.Duration, fn func()) (string, error)
	// Cancel stops the callback with the given id. Unknown ids are not an error.
	Cancel(id string) error
}

// Submitter is the submission boundary. It receives the full answer snapshot
// exactly once per flow, when the questionnaire finishes.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, answers map[int]Answer) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, sessionID string, answers map[int]Answer) error

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, sessionID string, answers map[int]Answer) error {
	return f(ctx, sessionID, answers)
}
