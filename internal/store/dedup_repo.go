package store

import (
	"time"
)

// DedupRecord is one idempotency key seen by the API.
type DedupRecord struct {
	Key         string     `json:"key"`
	SessionID   string     `json:"session_id"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo records idempotency keys so a retried renderer request is applied once.
type DedupRepo interface {
	// IsDuplicate reports whether key was already recorded.
	IsDuplicate(key string) (bool, error)

	// RecordInbound inserts key. Returns false if it was already recorded.
	RecordInbound(key, sessionID string) (bool, error)

	// MarkProcessed sets the processed_at timestamp for key.
	MarkProcessed(key string) error

	// ReleaseInbound forgets key unless it was already processed, so a
	// retry of a failed request is applied.
	ReleaseInbound(key string) error
}
