package usecase

import (
	"time"

	"ablevoice/internal/ports"
)

type systemClock struct{}

// SystemClock schedules callbacks with the runtime timer.
func SystemClock() ports.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) ports.Timer {
	return time.AfterFunc(d, fn)
}
