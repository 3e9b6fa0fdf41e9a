// Package messaging delivers submission notices through a pluggable provider.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrServiceStopped is returned by SendMessage after Stop.
	ErrServiceStopped = errors.New("messaging service stopped")
	errEmptyRecipient = errors.New("recipient cannot be empty")
)

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// MinPhoneDigits is the shortest recipient accepted after canonicalization.
const MinPhoneDigits = 6

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop releases provider resources. Later sends fail with ErrServiceStopped.
	Stop() error
}

// CanonicalizePhone strips everything but digits and checks the result is
// long enough to be a phone number.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	return canonical, nil
}
