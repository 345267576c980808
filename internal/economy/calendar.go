package economy

import (
	"time"

	"sodmax/internal/domain"
)

// oneTimePeriod is the fixed period start used for missions that never roll over
var oneTimePeriod = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// DayStart returns local midnight of t in loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// PeriodStart returns the beginning of the current period for a mission period
func PeriodStart(p domain.MissionPeriod, now time.Time, loc *time.Location) time.Time {
	switch p {
	case domain.PeriodDaily:
		return DayStart(now, loc)
	default:
		return oneTimePeriod
	}
}
