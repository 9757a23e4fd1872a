// Package mathx contains small numeric helpers
package mathx

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
// Halves round up.
func Round(x, unit float64) float64 {
	return float64(int64(x/unit+0.5)) * unit
}

// ClampInt limits x to the range [low, high]
func ClampInt(x, low, high int) int {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}
