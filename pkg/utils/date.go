package utils

import "time"

// DateOnly truncates t to midnight UTC. Observation dates are compared at
// day granularity.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
