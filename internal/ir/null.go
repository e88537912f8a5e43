package ir

import "math"

// Null returns the marker used for a missing numeric value.
func Null() float64 {
	return math.NaN()
}

// IsNull reports whether v is the missing-value marker.
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// Forever is the end time of an event that only ends on a skip response.
var Forever = math.Inf(1)

// IsForever reports whether t denotes an open-ended time.
func IsForever(t float64) bool {
	return math.IsInf(t, 1)
}
