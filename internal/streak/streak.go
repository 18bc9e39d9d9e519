package streak

import "time"

// DefaultHorizonDays bounds how far back Compute walks.
const DefaultHorizonDays = 60

// Compute counts consecutive calendar days with activity ending today.
// A missing today does not break the streak; any earlier gap ends it.
// Days are compared in today's location. horizon < 1 uses DefaultHorizonDays.
func Compute(dates []time.Time, today time.Time, horizon int) int {
	if len(dates) == 0 {
		return 0
	}
	if horizon < 1 {
		horizon = DefaultHorizonDays
	}

	loc := today.Location()
	days := make(map[civilDay]struct{}, len(dates))
	for _, d := range dates {
		days[dayOf(d.In(loc))] = struct{}{}
	}

	y, m, d := today.Date()
	count := 0
	for offset := 0; offset < horizon; offset++ {
		day := dayOf(time.Date(y, m, d-offset, 12, 0, 0, 0, loc))
		if _, ok := days[day]; ok {
			count++
			continue
		}
		if offset == 0 {
			continue
		}
		break
	}
	return count
}

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) civilDay {
	y, m, d := t.Date()
	return civilDay{y, m, d}
}
