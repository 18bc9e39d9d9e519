package services

import "time"

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location so "today" for streaks
// follows the configured timezone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}
