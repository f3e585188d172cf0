package models

import (
	"testing"
	"time"
)

func TestMonthKey(t *testing.T) {
	utc := time.Date(2025, time.August, 24, 12, 0, 0, 0, time.UTC)
	if got := MonthKey(utc); got != "2025-08" {
		t.Errorf("MonthKey = %q", got)
	}

	// Month boundaries are UTC, not local: 23:30-05:00 on Aug 31 is already
	// September in UTC.
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2025, time.August, 31, 23, 30, 0, 0, est)
	if got := MonthKey(late); got != "2025-09" {
		t.Errorf("MonthKey = %q, want 2025-09", got)
	}
}
