// Package mathutil holds small numeric helpers shared by the offset and
// statistics code.
package mathutil

import "time"

// AbsDuration returns the absolute value of a duration
func AbsDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Clamp clamps a value between lo and hi
func Clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Ratio returns part/whole clamped to [0, 1], and 0 when whole is 0
func Ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return Clamp(float64(part)/float64(whole), 0, 1)
}
