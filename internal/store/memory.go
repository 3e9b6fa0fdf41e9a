package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/models"
	"github.com/BTreeMap/ReelPipe/internal/util"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a process-local Store used when no database is configured
// and in tests. Its contents are lost on exit.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[string]models.Submission
	outbox      map[string]*OutboxMessage
	outboxOrder []string
	dedup       map[string]*DedupRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("NewInMemoryStore invoked")
	return &InMemoryStore{
		submissions: make(map[string]models.Submission),
		outbox:      make(map[string]*OutboxMessage),
		dedup:       make(map[string]*DedupRecord),
	}
}

func (s *InMemoryStore) SaveSubmission(sub models.Submission) (bool, error) {
	if err := sub.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.SessionID]; ok {
		return false, nil
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	sub.Answers = append([]byte(nil), sub.Answers...)
	s.submissions[sub.SessionID] = sub
	slog.Debug("InMemoryStore.SaveSubmission succeeded", "sessionID", sub.SessionID)
	return true, nil
}

func (s *InMemoryStore) GetSubmission(sessionID string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[sessionID]
	if !ok {
		return nil, models.ErrSubmissionNotFound
	}
	return &sub, nil
}

func (s *InMemoryStore) ListSubmissions(limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.RLock()
	subs := make([]models.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(sessionID, kind, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, id := range s.outboxOrder {
			m := s.outbox[id]
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusCanceled {
				slog.Debug("InMemoryStore.EnqueueOutboxMessage: dedupe hit", "dedupeKey", dedupeKey, "existingID", id)
				return id, nil
			}
		}
	}
	now := time.Now()
	id := util.GenerateOutboxID()
	s.outbox[id] = &OutboxMessage{
		ID:          id,
		SessionID:   sessionID,
		Kind:        kind,
		PayloadJSON: payloadJSON,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.outboxOrder = append(s.outboxOrder, id)
	return id, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []OutboxMessage
	for _, id := range s.outboxOrder {
		if len(claimed) >= limit {
			break
		}
		m := s.outbox[id]
		if m.Status != OutboxStatusQueued {
			continue
		}
		if m.NextAttemptAt != nil && m.NextAttemptAt.After(now) {
			continue
		}
		lockedAt := now
		m.Status = OutboxStatusSending
		m.LockedAt = &lockedAt
		m.UpdatedAt = now
		claimed = append(claimed, *m)
	}
	return claimed, nil
}

func (s *InMemoryStore) update(id string, fn func(m *OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return ErrOutboxMessageNotFound
	}
	fn(m)
	m.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	return s.update(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusSent
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.update(id, func(m *OutboxMessage) {
		next := nextAttemptAt
		m.Status = OutboxStatusQueued
		m.Attempts++
		m.LastError = errMsg
		m.NextAttemptAt = &next
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) GiveUpOutboxMessage(id string, errMsg string) error {
	return s.update(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusFailed
		m.Attempts++
		m.LastError = errMsg
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.outbox {
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			m.UpdatedAt = time.Now()
			n++
		}
	}
	if n > 0 {
		slog.Info("InMemoryStore.RequeueStaleSendingMessages", "requeued", n)
	}
	return n, nil
}

func (s *InMemoryStore) ListOutboxMessages(sessionID string) ([]OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var msgs []OutboxMessage
	for _, id := range s.outboxOrder {
		if m := s.outbox[id]; m.SessionID == sessionID {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

func (s *InMemoryStore) IsDuplicate(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[key]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(key, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[key]; ok {
		return false, nil
	}
	s.dedup[key] = &DedupRecord{Key: key, SessionID: sessionID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.dedup[key]; ok {
		now := time.Now()
		r.ProcessedAt = &now
	}
	return nil
}

func (s *InMemoryStore) ReleaseInbound(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.dedup[key]; ok && r.ProcessedAt == nil {
		delete(s.dedup, key)
	}
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
