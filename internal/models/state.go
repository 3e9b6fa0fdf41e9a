// Package models defines timer bookkeeping structures shared with the API.
package models

import "time"

// TimerInfo describes an active scheduled callback.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Remaining   string    `json:"remaining,omitempty"`
	Repeating   bool      `json:"repeating"`
	Description string    `json:"description"`
}
