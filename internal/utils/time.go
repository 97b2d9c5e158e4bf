package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses a calendar date in YYYY-MM-DD form, normalized to
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// RentalDays counts the nights between pickup and dropoff. A pickup on
// the 10th with dropoff on the 15th is 5 days.
func RentalDays(pickup, dropoff time.Time) int {
	return int(dropoff.Sub(pickup).Hours() / 24)
}

// FormatDate renders a date in YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
