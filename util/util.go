// Package util contains misc internal utilities.
package util

import (
	"time"

	"github.com/areaDetector/ADProsilica/mathx"
)

// AllElementsNumbers returns true if every rune in s is a digit or a decimal point
func AllElementsNumbers(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// SecsToDuration converts a number of seconds to a duration, rounded to the nanosecond
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(mathx.Round(secs*1e9, 1))
}
