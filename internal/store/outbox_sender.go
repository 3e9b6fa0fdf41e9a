package store

import (
	"context"
	"log/slog"
	"time"
)

// Outbox sender defaults.
const (
	DefaultPollInterval   = 5 * time.Second
	DefaultMaxAttempts    = 8
	DefaultStaleThreshold = 5 * time.Minute
	baseBackoff           = 10 * time.Second
	maxBackoff            = 30 * time.Minute
)

// OutboxSendFunc performs the actual delivery of one message.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// OutboxSender periodically claims due outbox messages and hands them to a send func.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
	maxAttempts    int
}

// SenderOption configures an OutboxSender.
type SenderOption func(*OutboxSender)

// WithMaxAttempts sets how many failed sends a message gets before it is given up.
func WithMaxAttempts(n int) SenderOption {
	return func(s *OutboxSender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithStaleThreshold sets how long a message may sit in sending before recovery requeues it.
func WithStaleThreshold(d time.Duration) SenderOption {
	return func(s *OutboxSender) {
		if d > 0 {
			s.staleThreshold = d
		}
	}
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc, pollInterval time.Duration, opts ...SenderOption) *OutboxSender {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	s := &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: DefaultStaleThreshold,
		claimLimit:     10,
		maxAttempts:    DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecoverStaleMessages requeues messages stuck in sending state (crash recovery).
// Should be called once at startup.
func (s *OutboxSender) RecoverStaleMessages() error {
	staleBefore := time.Now().Add(-s.staleThreshold)
	n, err := s.repo.RequeueStaleSendingMessages(staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *OutboxSender) Run(ctx context.Context) {
	slog.Info("OutboxSender.Run: starting outbox sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("OutboxSender.Run: stopping")
			return
		case <-ticker.C:
			s.Poll(ctx, time.Now())
		}
	}
}

// Poll claims the messages due at now and sends them. It returns the number
// of messages delivered.
func (s *OutboxSender) Poll(ctx context.Context, now time.Time) int {
	msgs, err := s.repo.ClaimDueOutboxMessages(now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.Poll: claim failed", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		slog.Debug("OutboxSender.Poll: sending message", "id", msg.ID, "sessionID", msg.SessionID, "kind", msg.Kind)
		if err := s.sendFunc(ctx, msg); err != nil {
			s.fail(msg, err, now)
			continue
		}
		if err := s.repo.MarkOutboxMessageSent(msg.ID); err != nil {
			slog.Error("OutboxSender.Poll: mark sent error", "id", msg.ID, "error", err)
			continue
		}
		sent++
		slog.Debug("OutboxSender.Poll: message sent", "id", msg.ID, "sessionID", msg.SessionID)
	}
	return sent
}

func (s *OutboxSender) fail(msg OutboxMessage, sendErr error, now time.Time) {
	if msg.Attempts+1 >= s.maxAttempts {
		slog.Error("OutboxSender.Poll: giving up", "id", msg.ID, "attempts", msg.Attempts+1, "error", sendErr)
		if err := s.repo.GiveUpOutboxMessage(msg.ID, sendErr.Error()); err != nil {
			slog.Error("OutboxSender.Poll: give up error", "id", msg.ID, "error", err)
		}
		return
	}
	slog.Warn("OutboxSender.Poll: send failed", "id", msg.ID, "attempts", msg.Attempts+1, "error", sendErr)
	if err := s.repo.FailOutboxMessage(msg.ID, sendErr.Error(), now.Add(Backoff(msg.Attempts))); err != nil {
		slog.Error("OutboxSender.Poll: fail message error", "id", msg.ID, "error", err)
	}
}

// Backoff returns the retry delay after attempts previous failures:
// 10s, 20s, 40s and so on, capped at 30 minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 16 {
		return maxBackoff
	}
	d := baseBackoff << attempts
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
