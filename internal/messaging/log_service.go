package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LogService is the default Service when no provider is configured. It writes
// every message to the structured log.
type LogService struct {
	mu      sync.Mutex
	stopped bool
	sent    int
}

// NewLogService creates a LogService.
func NewLogService() *LogService {
	return &LogService{}
}

// ValidateAndCanonicalizeRecipient accepts any non-blank recipient as is.
func (s *LogService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	r := strings.TrimSpace(recipient)
	if r == "" {
		return "", errEmptyRecipient
	}
	return r, nil
}

// SendMessage logs body at info level.
func (s *LogService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServiceStopped
	}
	s.sent++
	slog.Info("LogService message", "to", to, "body", body)
	return nil
}

// Sent returns how many messages were logged.
func (s *LogService) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *LogService) Start(ctx context.Context) error { return nil }

func (s *LogService) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}
