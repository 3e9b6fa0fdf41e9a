// Package submission persists finished questionnaires and delivers a notice
// for each one through the outbox.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/models"
	"github.com/BTreeMap/ReelPipe/internal/store"
)

// Repo is the part of the store the recorder writes to.
type Repo interface {
	store.SubmissionRepo
	store.OutboxRepo
}

// DedupeKey is the outbox key of the notice for sessionID. One notice is
// queued per session however often Submit is retried.
func DedupeKey(sessionID string) string {
	return "submission:" + sessionID
}

// Recorder implements flow.Submitter: it stores the answer snapshot and
// queues a notice in the same call.
type Recorder struct {
	repo   Repo
	script string
	now    func() time.Time
}

// Compile-time check that Recorder implements flow.Submitter.
var _ flow.Submitter = (*Recorder)(nil)

// NewRecorder creates a Recorder for flows built from the named script.
func NewRecorder(repo Repo, script string) *Recorder {
	return &Recorder{repo: repo, script: script, now: time.Now}
}

// Submit stores answers for sessionID and enqueues the delivery notice.
func (r *Recorder) Submit(ctx context.Context, sessionID string, answers map[int]flow.Answer) error {
	slog.Debug("Recorder.Submit invoked", "sessionID", sessionID, "answers", len(answers))
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers for %s: %w", sessionID, err)
	}
	sub := models.Submission{
		SessionID:   sessionID,
		Script:      r.script,
		Answers:     raw,
		SubmittedAt: r.now().UTC(),
	}
	inserted, err := r.repo.SaveSubmission(sub)
	if err != nil {
		return fmt.Errorf("save submission %s: %w", sessionID, err)
	}
	if !inserted {
		slog.Warn("Recorder.Submit: submission already stored", "sessionID", sessionID)
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode notice for %s: %w", sessionID, err)
	}
	id, err := r.repo.EnqueueOutboxMessage(sessionID, models.OutboxKindSubmission, string(payload), DedupeKey(sessionID))
	if err != nil {
		return fmt.Errorf("enqueue notice for %s: %w", sessionID, err)
	}
	slog.Debug("Recorder.Submit succeeded", "sessionID", sessionID, "outboxID", id)
	return nil
}
