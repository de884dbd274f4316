package utils

import (
	"time"
)

// ToEpochMicros converts a time.Time value to epoch microseconds,
// the timestamp unit used by the Zipkin v2 wire format.
func ToEpochMicros(t time.Time) int64 {
	return t.UnixMicro()
}

// FromEpochMicros converts epoch microseconds back to a time.Time.
func FromEpochMicros(micros int64) time.Time {
	return time.UnixMicro(micros)
}

// DurationMicros converts a time.Duration to microseconds for span durations.
func DurationMicros(d time.Duration) int64 {
	return d.Microseconds()
}
