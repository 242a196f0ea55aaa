package models

import (
	"strings"
	"time"
)

// Connection is the token record linking one user to one provider account.
// At most one row exists per (UserID, Provider).
type Connection struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"not null;uniqueIndex:idx_connection_user_provider,priority:1"`
	Provider string `gorm:"not null;uniqueIndex:idx_connection_user_provider,priority:2"` // "gmail", "discord", "slack"

	// Provider account snapshot
	ProviderUserID string
	Email          string

	// Token storage
	AccessToken  string    `gorm:"type:text"`
	RefreshToken string    `gorm:"type:text"`
	TokenType    string
	ExpiresAt    time.Time // zero means the provider issued a non-expiring token
	Scopes       string    // granted scopes, space separated

	LastRefreshedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Connection) TableName() string {
	return "connections"
}

// HasRefreshToken reports whether the record can be refreshed offline.
func (c *Connection) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// CanExpire reports whether the access token carries an expiry.
func (c *Connection) CanExpire() bool {
	return !c.ExpiresAt.IsZero()
}

// IsExpired reports whether the access token is invalid at now. A token that
// expires within leeway of now already counts as expired.
func (c *Connection) IsExpired(now time.Time, leeway time.Duration) bool {
	if !c.CanExpire() {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

// ScopeList returns the granted scopes in stored order.
func (c *Connection) ScopeList() []string {
	return strings.Fields(c.Scopes)
}
