package store

import "github.com/BTreeMap/ReelPipe/internal/models"

// SubmissionRepo stores the final answer snapshot of each session.
type SubmissionRepo interface {
	// SaveSubmission stores sub. A second save for the same session is a no-op
	// and reports false.
	SaveSubmission(sub models.Submission) (bool, error)

	// GetSubmission returns models.ErrSubmissionNotFound for unknown sessions.
	GetSubmission(sessionID string) (*models.Submission, error)

	// ListSubmissions returns up to limit submissions, newest first.
	ListSubmissions(limit int) ([]models.Submission, error)
}

// DefaultListLimit caps ListSubmissions when no limit is given.
const DefaultListLimit = 50
