package flow

import (
	"encoding/json"
	"fmt"
)

// AnswerKind tags the shape of an Answer.
type AnswerKind string

const (
	AnswerConfirmation AnswerKind = "confirmation"
	AnswerChoice       AnswerKind = "choice"
	AnswerText         AnswerKind = "text"
	AnswerContact      AnswerKind = "contact"
)

// Contact is the structured answer of a contact-capture step.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Answer is a tagged value. Only the field matching Kind is meaningful.
type Answer struct {
	Kind      AnswerKind
	Confirmed bool
	Value     string
	Contact   Contact
}

// Confirm builds a confirmation answer.
func Confirm(v bool) Answer { return Answer{Kind: AnswerConfirmation, Confirmed: v} }

// Choice builds a selected-option answer.
func Choice(option string) Answer { return Answer{Kind: AnswerChoice, Value: option} }

// Text builds a free-text answer.
func Text(s string) Answer { return Answer{Kind: AnswerText, Value: s} }

// ContactAnswer builds a contact answer.
func ContactAnswer(name, phone string) Answer {
	return Answer{Kind: AnswerContact, Contact: Contact{Name: name, Phone: phone}}
}

// Interface returns the plain Go value carried by the answer:
// bool, string or Contact.
func (a Answer) Interface() interface{} {
	switch a.Kind {
	case AnswerConfirmation:
		return a.Confirmed
	case AnswerChoice, AnswerText:
		return a.Value
	case AnswerContact:
		return a.Contact
	default:
		return nil
	}
}

// String renders the answer for humans (notifications, terminal output).
func (a Answer) String() string {
	switch a.Kind {
	case AnswerConfirmation:
		if a.Confirmed {
			return "yes"
		}
		return "no"
	case AnswerChoice, AnswerText:
		return a.Value
	case AnswerContact:
		return fmt.Sprintf("%s (%s)", a.Contact.Name, a.Contact.Phone)
	default:
		return ""
	}
}

// MarshalJSON encodes the answer as its bare value, so a snapshot reads
// {"0": true, "1": "B", "2": "hello", "3": {"name": ..., "phone": ...}}.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Kind == "" {
		return nil, fmt.Errorf("cannot marshal answer without kind")
	}
	return json.Marshal(a.Interface())
}
