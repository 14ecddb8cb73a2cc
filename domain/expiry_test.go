package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExpiry(t *testing.T) {
	today := time.Date(2026, 10, 14, 18, 45, 0, 0, time.UTC)

	tests := []struct {
		expiry string
		status ExpiryStatus
		days   int
	}{
		{"2026-10-13", ExpiryExpired, -1},
		{"2026-10-14", ExpiryNear, 0},
		{"2026-11-13", ExpiryNear, 30},
		{"2026-11-14", ExpiryValid, 31},
		{"14/10/2026", ExpiryInvalid, 0},
		{"", ExpiryInvalid, 0},
	}
	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			status, days := ClassifyExpiry(tt.expiry, today, 30)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.days, days)
		})
	}
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2026-02-28"))
	assert.False(t, ValidDate("2026-02-30"))
	assert.False(t, ValidDate("2026-2-3"))
}
