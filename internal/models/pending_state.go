package models

import "time"

// PendingState is an issued OAuth state waiting for its provider callback.
// It is single-use and short-lived.
type PendingState struct {
	State     string    `json:"state"`
	Provider  string    `json:"provider"`
	UserID    string    `json:"user_id,omitempty"` // empty: bind to the provider account email
	Redirect  string    `json:"redirect,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the state can no longer be redeemed.
func (p *PendingState) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
