package schedule

import (
	"time"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
)

// Cadence is the recurring slot of a schedule, in the facility's local time.
type Cadence struct {
	Frequency repo.Frequency
	DayOfWeek int // weekly only; 0 = Sunday
	Hour      int
	Minute    int
}

func CadenceOf(s repo.ExportSchedule) Cadence {
	c := Cadence{Frequency: s.Frequency, Hour: s.Hour, Minute: s.Minute}
	if s.DayOfWeek != nil {
		c.DayOfWeek = *s.DayOfWeek
	}
	return c
}

// NextRun returns the first slot strictly after `after`, evaluated in loc
// and returned in UTC. Only one future slot is ever produced, so any number
// of missed slots collapses into a single next run.
func NextRun(c Cadence, after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := after.In(loc)
	y, m, d := local.Date()

	var candidate time.Time
	step := 1
	switch c.Frequency {
	case repo.FrequencyWeekly:
		ahead := (c.DayOfWeek - int(local.Weekday()) + 7) % 7
		candidate = time.Date(y, m, d+ahead, c.Hour, c.Minute, 0, 0, loc)
		step = 7
	default:
		candidate = time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
	}

	for !candidate.After(after) {
		y, m, d = candidate.Date()
		candidate = time.Date(y, m, d+step, c.Hour, c.Minute, 0, 0, loc)
	}
	return candidate.UTC()
}
