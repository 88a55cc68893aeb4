package planner

import "time"

type Period string

const (
	Breakfast Period = "Breakfast"
	Lunch     Period = "Lunch"
	Dinner    Period = "Dinner"
)

// MealPeriod buckets an "HH:MM" time: before 11:00 is breakfast, before
// 17:00 is lunch, anything later is dinner. Unparseable times count as dinner.
func MealPeriod(clock string) Period {
	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return Dinner
	}

	switch hour := t.Hour(); {
	case hour < 11:
		return Breakfast
	case hour < 17:
		return Lunch
	default:
		return Dinner
	}
}

// DateLabel names date relative to now: Today, Yesterday, Tomorrow, or a
// short weekday form such as "Mon, Jan 2".
func DateLabel(date string, now time.Time) string {
	d, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return date
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch d.Sub(today).Round(time.Hour) / (24 * time.Hour) {
	case 0:
		return "Today"
	case -1:
		return "Yesterday"
	case 1:
		return "Tomorrow"
	}
	return d.Format("Mon, Jan 2")
}

// ShiftDate moves an ISO date by days, keeping the ISO format.
func ShiftDate(date string, days int) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, days).Format(DateLayout)
}

// Today is the ISO date of now in its own location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}
