package recurring

import (
	"time"

	"cloud.google.com/go/civil"
)

// LastDayOf returns the number of days in month, honouring leap years.
func LastDayOf(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay builds year-month-day, clamping day to the month length.
// Day 31 in February resolves to the 28th or 29th rather than skipping the month.
func clampDay(year int, month time.Month, day int) civil.Date {
	if last := LastDayOf(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

func weekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// DueDate returns the most recent occurrence of t on or before asOf.
// It is pure and never returns a date after asOf.
func DueDate(t Template, asOf civil.Date) civil.Date {
	switch t.Frequency {
	case FrequencyMonthly:
		return monthlyDue(t, asOf)
	case FrequencyWeekly:
		return weeklyDue(t, asOf)
	case FrequencyBiweekly:
		return biweeklyDue(t, asOf)
	case FrequencyYearly:
		return yearlyDue(t, asOf)
	}
	// Unvalidated frequency: every day is due.
	return asOf
}

// NextDueDate returns the first occurrence of t strictly after after.
func NextDueDate(t Template, after civil.Date) civil.Date {
	switch t.Frequency {
	case FrequencyMonthly:
		end := clampDay(after.Year, after.Month, 31)
		if d := DueDate(t, end); d.After(after) {
			return d
		}
		next := civil.DateOf(time.Date(after.Year, after.Month+1, 1, 0, 0, 0, 0, time.UTC))
		return DueDate(t, clampDay(next.Year, next.Month, 31))
	case FrequencyYearly:
		if d := DueDate(t, civil.Date{Year: after.Year, Month: time.December, Day: 31}); d.After(after) {
			return d
		}
		return DueDate(t, civil.Date{Year: after.Year + 1, Month: time.December, Day: 31})
	case FrequencyWeekly:
		return DueDate(t, after.AddDays(7))
	case FrequencyBiweekly:
		if _, ok := biweeklyAnchor(t); !ok {
			return DueDate(t, after.AddDays(7))
		}
		return DueDate(t, after.AddDays(14))
	}
	return after.AddDays(1)
}

func monthDay(t Template, year int, month time.Month) civil.Date {
	switch {
	case t.LastOfMonth:
		return clampDay(year, month, LastDayOf(year, month))
	case t.DayOfMonth != nil:
		return clampDay(year, month, *t.DayOfMonth)
	default:
		return clampDay(year, month, 1)
	}
}

func monthlyDue(t Template, asOf civil.Date) civil.Date {
	target := monthDay(t, asOf.Year, asOf.Month)
	if !target.After(asOf) {
		return target
	}
	prev := civil.DateOf(time.Date(asOf.Year, asOf.Month-1, 1, 0, 0, 0, 0, time.UTC))
	return monthDay(t, prev.Year, prev.Month)
}

func yearlyDue(t Template, asOf civil.Date) civil.Date {
	month := time.January
	if t.MonthOfYear != nil {
		month = *t.MonthOfYear
	}
	target := monthDay(t, asOf.Year, month)
	if !target.After(asOf) {
		return target
	}
	return monthDay(t, asOf.Year-1, month)
}

func weeklyDue(t Template, asOf civil.Date) civil.Date {
	if t.DayOfWeek == nil {
		return asOf
	}
	back := (int(weekdayOf(asOf)) - int(*t.DayOfWeek) + 7) % 7
	return asOf.AddDays(-back)
}

// biweeklyAnchor returns the date fixing 14-day parity: the template's
// anchor date, else its first reminder, moved forward onto DayOfWeek.
func biweeklyAnchor(t Template) (civil.Date, bool) {
	anchor := t.AnchorDate
	if !anchor.IsValid() {
		if t.LastReminded == nil {
			return civil.Date{}, false
		}
		anchor = *t.LastReminded
	}
	if t.DayOfWeek != nil {
		forward := (int(*t.DayOfWeek) - int(weekdayOf(anchor)) + 7) % 7
		anchor = anchor.AddDays(forward)
	}
	return anchor, true
}

func biweeklyDue(t Template, asOf civil.Date) civil.Date {
	anchor, ok := biweeklyAnchor(t)
	if !ok {
		return weeklyDue(t, asOf)
	}
	k := floorDiv(asOf.DaysSince(anchor), 14)
	return anchor.AddDays(14 * k)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
