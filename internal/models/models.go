// Package models defines the core data structures for ReelPipe.
//
// It includes the request payloads accepted from renderers and the JSON
// envelope used for every API response. Types shared between the flow engine
// and the outer layers live here to avoid circular imports.
package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Validation constants for renderer payloads.
const (
	// MaxTextAnswerLength bounds free-text answers accepted over the API.
	MaxTextAnswerLength = 4096
	// MaxContactFieldLength bounds each field of a contact answer.
	MaxContactFieldLength = 200
	// MaxChoiceValueLength bounds a selected option value.
	MaxChoiceValueLength = 200
)

// Error variables shared by the API, the session registry and the stores.
var (
	ErrEmptyValue          = errors.New("value cannot be empty")
	ErrValueTooLong        = errors.New("value exceeds maximum length")
	ErrTextTooLong         = errors.New("text exceeds maximum length")
	ErrContactFieldTooLong = errors.New("contact field exceeds maximum length")
	ErrNegativeStepID      = errors.New("step_id cannot be negative")
	ErrEmptyDraft          = errors.New("draft must set at least one field")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrSessionNotFound     = errors.New("session not found")
)

// SelectRequest is the payload for POST /sessions/{id}/select.
type SelectRequest struct {
	StepID int    `json:"step_id"`
	Value  string `json:"value"`
}

// Validate checks a SelectRequest.
func (r *SelectRequest) Validate() error {
	if r.StepID < 0 {
		return ErrNegativeStepID
	}
	if len(r.Value) > MaxChoiceValueLength {
		return ErrValueTooLong
	}
	return nil
}

// TextRequest is the payload for POST /sessions/{id}/text.
// Empty text is allowed through; the flow decides whether it is acceptable.
type TextRequest struct {
	Text string `json:"text"`
}

// Validate checks a TextRequest.
func (r *TextRequest) Validate() error {
	if len(r.Text) > MaxTextAnswerLength {
		return ErrTextTooLong
	}
	return nil
}

// ContactRequest is the payload for POST /sessions/{id}/contact.
type ContactRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Validate checks a ContactRequest.
func (r *ContactRequest) Validate() error {
	if len(r.Name) > MaxContactFieldLength || len(r.Phone) > MaxContactFieldLength {
		return ErrContactFieldTooLong
	}
	return nil
}

// DraftRequest is the payload for PUT /sessions/{id}/draft. Nil fields are left untouched.
type DraftRequest struct {
	Text  *string `json:"text,omitempty"`
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Validate checks a DraftRequest.
func (r *DraftRequest) Validate() error {
	if r.Text == nil && r.Name == nil && r.Phone == nil {
		return ErrEmptyDraft
	}
	if r.Text != nil && len(*r.Text) > MaxTextAnswerLength {
		return ErrTextTooLong
	}
	if (r.Name != nil && len(*r.Name) > MaxContactFieldLength) || (r.Phone != nil && len(*r.Phone) > MaxContactFieldLength) {
		return ErrContactFieldTooLong
	}
	return nil
}

// Submission is the durable record written when a session reaches SUBMITTED.
type Submission struct {
	SessionID   string          `json:"session_id"`
	Script      string          `json:"script"`
	Answers     json.RawMessage `json:"answers"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Validate checks that a Submission can be stored.
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return errors.New("session_id is required")
	}
	if len(s.Answers) == 0 {
		return errors.New("answers are required")
	}
	if !json.Valid(s.Answers) {
		return errors.New("answers must be valid JSON")
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRejected indicates a renderer event that the flow did not accept.
	APIStatusRejected APIStatus = "rejected"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Rejected creates a response for an event the flow absorbed without progressing.
// The current view is still returned so renderers can redraw.
func Rejected(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRejected).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
