package domain

import "time"

type ExpiryStatus string

const (
	ExpiryValid   ExpiryStatus = "valid"
	ExpiryNear    ExpiryStatus = "near_expiry"
	ExpiryExpired ExpiryStatus = "expired"
	ExpiryInvalid ExpiryStatus = "invalid"
)

// ClassifyExpiry reports the expiry status of an ISO date relative to today
// and the signed number of days remaining. Unparseable dates yield
// ExpiryInvalid and zero days.
func ClassifyExpiry(expiry string, today time.Time, nearDays int) (ExpiryStatus, int) {
	exp, err := time.Parse(DateLayout, expiry)
	if err != nil {
		return ExpiryInvalid, 0
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	days := int(exp.Sub(start).Hours() / 24)

	switch {
	case days < 0:
		return ExpiryExpired, days
	case days <= nearDays:
		return ExpiryNear, days
	default:
		return ExpiryValid, days
	}
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
