package clock

import "time"

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reports wall-clock time in UTC for persisted timestamps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// MonotonicClock keeps the monotonic reading of time.Now so that Sub between
// two instants is immune to wall-clock adjustments. Do not persist its values.
type MonotonicClock struct{}

func (MonotonicClock) Now() time.Time {
	return time.Now()
}
