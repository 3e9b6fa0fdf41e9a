// Package util holds small helpers shared by ReelPipe components.
package util

import (
	"math/rand/v2"
	"strings"
)

const hexChars = "0123456789abcdef"

// GenerateRandomID returns prefix followed by hexLength random hex digits.
// The ids are not secrets; math/rand/v2 is enough.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex returns length random hex digits.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(hexChars[rand.IntN(len(hexChars))])
	}
	return b.String()
}

// GenerateOutboxID returns an id for a queued delivery.
func GenerateOutboxID() string {
	return GenerateRandomID("outbox_", 32)
}

// GenerateDedupKey returns an idempotency key for requests that arrive without one.
func GenerateDedupKey() string {
	return GenerateRandomID("dk_", 24)
}
