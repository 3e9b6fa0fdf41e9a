package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/ReelPipe/internal/models"
)

// Compile-time check that SQLiteStore implements SubmissionRepo.
var _ SubmissionRepo = (*SQLiteStore)(nil)

func (s *SQLiteStore) SaveSubmission(sub models.Submission) (bool, error) {
	slog.Debug("SQLiteStore.SaveSubmission invoked", "sessionID", sub.SessionID)
	if err := sub.Validate(); err != nil {
		return false, err
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = nowUTC()
	}
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO submissions (session_id, script, answers_json, submitted_at) VALUES (?, ?, ?, ?)`,
		sub.SessionID, sub.Script, string(sub.Answers), sub.SubmittedAt.UTC(),
	)
	if err != nil {
		slog.Error("SQLiteStore.SaveSubmission insert failed", "error", err, "sessionID", sub.SessionID)
		return false, fmt.Errorf("save submission failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		slog.Debug("SQLiteStore.SaveSubmission: already stored", "sessionID", sub.SessionID)
		return false, nil
	}
	slog.Debug("SQLiteStore.SaveSubmission succeeded", "sessionID", sub.SessionID)
	return true, nil
}

func (s *SQLiteStore) GetSubmission(sessionID string) (*models.Submission, error) {
	row := s.db.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE session_id = ?`, sessionID)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission failed: %w", err)
	}
	return &sub, nil
}

func (s *SQLiteStore) ListSubmissions(limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(
		`SELECT `+submissionColumns+` FROM submissions ORDER BY submitted_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions failed: %w", err)
	}
	defer rows.Close()
	return collectSubmissions(rows)
}
