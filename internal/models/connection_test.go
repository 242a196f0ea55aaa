package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnection_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		leeway    time.Duration
		expected  bool
	}{
		{"future", now.Add(time.Hour), 0, false},
		{"exactly now", now, 0, true},
		{"past", now.Add(-time.Minute), 0, true},
		{"inside leeway", now.Add(10 * time.Second), 30 * time.Second, true},
		{"outside leeway", now.Add(time.Minute), 30 * time.Second, false},
		{"non-expiring", time.Time{}, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Connection{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, c.IsExpired(now, tt.leeway))
		})
	}
}

func TestConnection_Helpers(t *testing.T) {
	c := &Connection{Scopes: "identify  email"}
	assert.Equal(t, []string{"identify", "email"}, c.ScopeList())
	assert.False(t, c.HasRefreshToken())
	assert.False(t, c.CanExpire())

	c.RefreshToken = "rt"
	c.ExpiresAt = time.Now()
	assert.True(t, c.HasRefreshToken())
	assert.True(t, c.CanExpire())
	assert.Equal(t, "connections", Connection{}.TableName())
}

func TestPendingState_IsExpired(t *testing.T) {
	now := time.Now()
	p := &PendingState{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, p.IsExpired(now))
	assert.True(t, p.IsExpired(now.Add(time.Minute)))
}
