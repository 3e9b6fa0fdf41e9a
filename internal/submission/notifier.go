package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/messaging"
	"github.com/BTreeMap/ReelPipe/internal/models"
	"github.com/BTreeMap/ReelPipe/internal/store"
)

// Summarizer condenses formatted answers. genai.Client implements it.
type Summarizer interface {
	Summarize(ctx context.Context, lines []string) (string, error)
}

// Notifier turns queued submission notices into messages.
type Notifier struct {
	svc        messaging.Service
	to         string
	cfg        *flow.Config
	summarizer Summarizer
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithSummarizer prefixes every notice with a generated summary.
func WithSummarizer(s Summarizer) NotifierOption {
	return func(n *Notifier) { n.summarizer = s }
}

// NewNotifier sends notices to recipient through svc. cfg supplies the step
// prompts used to label answers and may be nil.
func NewNotifier(svc messaging.Service, recipient string, cfg *flow.Config, opts ...NotifierOption) *Notifier {
	n := &Notifier{svc: svc, to: recipient, cfg: cfg}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Deliver is a store.OutboxSendFunc for submission notices.
func (n *Notifier) Deliver(ctx context.Context, msg store.OutboxMessage) error {
	slog.Debug("Notifier.Deliver invoked", "id", msg.ID, "sessionID", msg.SessionID, "kind", msg.Kind)
	if msg.Kind != models.OutboxKindSubmission {
		return fmt.Errorf("unsupported outbox kind %q", msg.Kind)
	}
	var sub models.Submission
	if err := json.Unmarshal([]byte(msg.PayloadJSON), &sub); err != nil {
		return fmt.Errorf("decode submission notice %s: %w", msg.ID, err)
	}
	lines, err := FormatAnswers(n.cfg, sub.Answers)
	if err != nil {
		return fmt.Errorf("format submission %s: %w", sub.SessionID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New submission %s (%s)\n", sub.SessionID, sub.SubmittedAt.Format("2006-01-02 15:04 MST"))
	if n.summarizer != nil {
		summary, err := n.summarizer.Summarize(ctx, lines)
		if err != nil {
			slog.Warn("Notifier.Deliver: summary failed, sending answers only", "sessionID", sub.SessionID, "error", err)
		} else if summary != "" {
			b.WriteString("\n" + summary + "\n")
		}
	}
	b.WriteString("\n" + strings.Join(lines, "\n"))

	if err := n.svc.SendMessage(ctx, n.to, b.String()); err != nil {
		return fmt.Errorf("send submission %s: %w", sub.SessionID, err)
	}
	slog.Info("Notifier.Deliver succeeded", "sessionID", sub.SessionID, "to", n.to)
	return nil
}

// FormatAnswers renders a stored answer map as "n. prompt: value" lines in
// step order. Steps that are unknown to cfg are labelled by id.
func FormatAnswers(cfg *flow.Config, raw json.RawMessage) ([]string, error) {
	var answers map[string]json.RawMessage
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(answers))
	for k := range answers {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("answer key %q is not a step id", k)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		label := fmt.Sprintf("step %d", id)
		if cfg != nil {
			if def, ok := cfg.Step(id); ok {
				if def.Kind == flow.KindWelcome || def.Kind == flow.KindReflection {
					continue
				}
				if def.Prompt != "" {
					label = def.Prompt
				}
			}
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", id, label, answerText(answers[strconv.Itoa(id)])))
	}
	return lines, nil
}

func answerText(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch x := v.(type) {
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case string:
		return x
	case map[string]interface{}:
		name, _ := x["name"].(string)
		phone, _ := x["phone"].(string)
		return fmt.Sprintf("%s (%s)", name, phone)
	default:
		return string(raw)
	}
}
