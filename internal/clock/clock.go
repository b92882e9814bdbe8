package clock

import "time"

// Clock supplies wall-clock time so session identity stays deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns the real clock.
func System() Clock {
	return systemClock{}
}
