package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/models"
)

// Compile-time check that PostgresStore implements SubmissionRepo.
var _ SubmissionRepo = (*PostgresStore)(nil)

func (s *PostgresStore) SaveSubmission(sub models.Submission) (bool, error) {
	slog.Debug("PostgresStore.SaveSubmission invoked", "sessionID", sub.SessionID)
	if err := sub.Validate(); err != nil {
		return false, err
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	result, err := s.db.Exec(
		`INSERT INTO submissions (session_id, script, answers_json, submitted_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO NOTHING`,
		sub.SessionID, sub.Script, string(sub.Answers), sub.SubmittedAt,
	)
	if err != nil {
		slog.Error("PostgresStore.SaveSubmission insert failed", "error", err, "sessionID", sub.SessionID)
		return false, fmt.Errorf("save submission failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("submission rows affected check failed: %w", err)
	}
	slog.Debug("PostgresStore.SaveSubmission succeeded", "sessionID", sub.SessionID, "inserted", n > 0)
	return n > 0, nil
}

func (s *PostgresStore) GetSubmission(sessionID string) (*models.Submission, error) {
	row := s.db.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE session_id = $1`, sessionID)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission failed: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubmissions(limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(
		`SELECT `+submissionColumns+` FROM submissions ORDER BY submitted_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions failed: %w", err)
	}
	defer rows.Close()
	return collectSubmissions(rows)
}
