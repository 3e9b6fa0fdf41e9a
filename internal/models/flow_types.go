// Package models defines flow type definitions to avoid circular imports.
package models

// Mode is the outer state of a flow instance.
type Mode string

// Mode constants. A flow only ever moves forward through them.
const (
	ModeTimeline  Mode = "TIMELINE_ACTIVE"
	ModeWizard    Mode = "WIZARD_ACTIVE"
	ModeSubmitted Mode = "SUBMITTED"
)

// IsValidMode checks if the given mode is one of the known modes.
func IsValidMode(m Mode) bool {
	switch m {
	case ModeTimeline, ModeWizard, ModeSubmitted:
		return true
	default:
		return false
	}
}

// OutboxKindSubmission is the outbox message kind carrying a finished questionnaire.
const OutboxKindSubmission = "submission"
