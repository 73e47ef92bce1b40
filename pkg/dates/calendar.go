package dates

import (
	"strings"
	"time"
)

// Calendar decides business days for one settlement center, or for the
// union of two (see Joint). Saturday and Sunday are never business days.
type Calendar struct {
	name      string
	isHoliday func(t time.Time) bool
}

func (c Calendar) Name() string { return c.name }

func (c Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return c.isHoliday == nil || !c.isHoliday(t)
}

// Adjust moves a date onto a business day per the convention. Modified
// following falls back to the preceding business day when following would
// cross into the next month.
func (c Calendar) Adjust(t time.Time, conv Convention) time.Time {
	if c.IsBusinessDay(t) {
		return t
	}
	switch conv {
	case Preceding:
		for !c.IsBusinessDay(t) {
			t = t.AddDate(0, 0, -1)
		}
		return t
	case ModifiedFollowing:
		fwd := t
		for !c.IsBusinessDay(fwd) {
			fwd = fwd.AddDate(0, 0, 1)
		}
		if fwd.Month() != t.Month() {
			return c.Adjust(t, Preceding)
		}
		return fwd
	default: // Following
		for !c.IsBusinessDay(t) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}
}

// AdvanceBusinessDays steps one calendar day at a time, counting only
// business-day landings, then applies the convention to the result.
func (c Calendar) AdvanceBusinessDays(t time.Time, n int, conv Convention) time.Time {
	moved := 0
	for moved < n {
		t = t.AddDate(0, 0, 1)
		if c.IsBusinessDay(t) {
			moved++
		}
	}
	return c.Adjust(t, conv)
}

// AdvanceMonths adds calendar months (years are months*12), clamping to the
// end of shorter months. With eom set, a start date on the last business day
// of its month lands on the last business day of the target month.
func (c Calendar) AdvanceMonths(t time.Time, months int, conv Convention, eom bool) time.Time {
	target := addMonthsClamped(t, months)
	if eom && c.isEndOfMonth(t) {
		target = endOfMonth(target)
		for !c.IsBusinessDay(target) {
			target = target.AddDate(0, 0, -1)
		}
		return target
	}
	return c.Adjust(target, conv)
}

func (c Calendar) isEndOfMonth(t time.Time) bool {
	if !c.IsBusinessDay(t) {
		return false
	}
	next := t.AddDate(0, 0, 1)
	for !c.IsBusinessDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Month() != t.Month()
}

// Joint is the union of two calendars' holiday sets: a day is a business
// day only if it is one in both centers.
func Joint(a, b Calendar) Calendar {
	return Calendar{
		name: a.name + "+" + b.name,
		isHoliday: func(t time.Time) bool {
			return (a.isHoliday != nil && a.isHoliday(t)) || (b.isHoliday != nil && b.isHoliday(t))
		},
	}
}

// CalendarFor returns the settlement calendar for a currency. Currencies
// outside the mapped set fall back to a weekend-only calendar.
func CalendarFor(ccy string) (Calendar, bool) {
	switch strings.ToUpper(ccy) {
	case "USD":
		return Calendar{"US", usHoliday}, true
	case "EUR":
		return Calendar{"TARGET", targetHoliday}, true
	case "GBP":
		return Calendar{"UK", ukHoliday}, true
	case "JPY":
		return Calendar{"JP", jpHoliday}, true
	case "CHF":
		return Calendar{"CH", chHoliday}, true
	case "CAD":
		return Calendar{"CA", caHoliday}, true
	case "AUD":
		return Calendar{"AU", auHoliday}, true
	case "NZD":
		return Calendar{"NZ", nzHoliday}, true
	case "SEK":
		return Calendar{"SE", seHoliday}, true
	case "NOK":
		return Calendar{"NO", noHoliday}, true
	case "DKK":
		return Calendar{"DK", dkHoliday}, true
	default:
		return DefaultCalendar(), false
	}
}

// DefaultCalendar observes weekends only.
func DefaultCalendar() Calendar {
	return Calendar{name: "DEFAULT"}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, -1)
}

// easter returns Easter Sunday for a year (anonymous Gregorian computus).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func easterOffset(t time.Time, days int) bool {
	e := easter(t.Year()).AddDate(0, 0, days)
	return t.Month() == e.Month() && t.Day() == e.Day()
}

func nthWeekday(t time.Time, wd time.Weekday, n int) bool {
	return t.Weekday() == wd && (t.Day()-1)/7 == n-1
}

func lastWeekday(t time.Time, wd time.Weekday) bool {
	return t.Weekday() == wd && t.AddDate(0, 0, 7).Month() != t.Month()
}

// observed shifts Saturday holidays to Friday and Sunday holidays to Monday.
func observed(t time.Time, month time.Month, day int) bool {
	if t.Month() == month && t.Day() == day {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	if t.Weekday() == time.Friday {
		n := t.AddDate(0, 0, 1)
		return n.Month() == month && n.Day() == day
	}
	if t.Weekday() == time.Monday {
		p := t.AddDate(0, 0, -1)
		return p.Month() == month && p.Day() == day
	}
	return false
}

func fixed(t time.Time, month time.Month, day int) bool {
	return t.Month() == month && t.Day() == day
}

func usHoliday(t time.Time) bool {
	switch {
	case observed(t, time.January, 1),
		t.Month() == time.January && nthWeekday(t, time.Monday, 3), // MLK
		t.Month() == time.February && nthWeekday(t, time.Monday, 3), // Presidents
		t.Month() == time.May && lastWeekday(t, time.Monday), // Memorial
		observed(t, time.June, 19),
		observed(t, time.July, 4),
		t.Month() == time.September && nthWeekday(t, time.Monday, 1), // Labor
		t.Month() == time.October && nthWeekday(t, time.Monday, 2), // Columbus
		observed(t, time.November, 11),
		t.Month() == time.November && nthWeekday(t, time.Thursday, 4), // Thanksgiving
		observed(t, time.December, 25):
		return true
	}
	return false
}

func targetHoliday(t time.Time) bool {
	return fixed(t, time.January, 1) ||
		easterOffset(t, -2) || easterOffset(t, 1) || // Good Friday, Easter Monday
		fixed(t, time.May, 1) ||
		fixed(t, time.December, 25) || fixed(t, time.December, 26)
}

func ukHoliday(t time.Time) bool {
	return observed(t, time.January, 1) ||
		easterOffset(t, -2) || easterOffset(t, 1) ||
		(t.Month() == time.May && nthWeekday(t, time.Monday, 1)) ||
		(t.Month() == time.May && lastWeekday(t, time.Monday)) ||
		(t.Month() == time.August && lastWeekday(t, time.Monday)) ||
		observed(t, time.December, 25) || observed(t, time.December, 26)
}

// jpHoliday covers the fixed national holidays; equinox days are omitted.
func jpHoliday(t time.Time) bool {
	switch {
	case fixed(t, time.January, 1), fixed(t, time.January, 2), fixed(t, time.January, 3),
		t.Month() == time.January && nthWeekday(t, time.Monday, 2), // Coming of Age
		fixed(t, time.February, 11), fixed(t, time.February, 23),
		fixed(t, time.April, 29),
		fixed(t, time.May, 3), fixed(t, time.May, 4), fixed(t, time.May, 5),
		t.Month() == time.July && nthWeekday(t, time.Monday, 3), // Marine Day
		fixed(t, time.August, 11),
		t.Month() == time.September && nthWeekday(t, time.Monday, 3), // Respect for the Aged
		t.Month() == time.October && nthWeekday(t, time.Monday, 2), // Sports Day
		fixed(t, time.November, 3), fixed(t, time.November, 23),
		fixed(t, time.December, 31):
		return true
	}
	return false
}

func chHoliday(t time.Time) bool {
	return fixed(t, time.January, 1) || fixed(t, time.January, 2) ||
		easterOffset(t, -2) || easterOffset(t, 1) ||
		easterOffset(t, 39) || easterOffset(t, 50) || // Ascension, Whit Monday
		fixed(t, time.May, 1) ||
		fixed(t, time.August, 1) ||
		fixed(t, time.December, 25) || fixed(t, time.December, 26)
}

func caHoliday(t time.Time) bool {
	switch {
	case observed(t, time.January, 1),
		t.Month() == time.February && nthWeekday(t, time.Monday, 3), // Family Day
		easterOffset(t, -2),
		t.Month() == time.May && t.Weekday() == time.Monday && t.Day() >= 18 && t.Day() <= 24, // Victoria Day
		observed(t, time.July, 1),
		t.Month() == time.August && nthWeekday(t, time.Monday, 1), // Civic
		t.Month() == time.September && nthWeekday(t, time.Monday, 1), // Labour
		t.Month() == time.October && nthWeekday(t, time.Monday, 2), // Thanksgiving
		observed(t, time.November, 11),
		observed(t, time.December, 25), observed(t, time.December, 26):
		return true
	}
	return false
}

func auHoliday(t time.Time) bool {
	return observed(t, time.January, 1) ||
		observed(t, time.January, 26) ||
		easterOffset(t, -2) || easterOffset(t, 1) ||
		fixed(t, time.April, 25) || // ANZAC
		(t.Month() == time.June && nthWeekday(t, time.Monday, 2)) || // King's Birthday
		observed(t, time.December, 25) || observed(t, time.December, 26)
}

func nzHoliday(t time.Time) bool {
	return observed(t, time.January, 1) || observed(t, time.January, 2) ||
		fixed(t, time.February, 6) || // Waitangi
		easterOffset(t, -2) || easterOffset(t, 1) ||
		fixed(t, time.April, 25) ||
		(t.Month() == time.June && nthWeekday(t, time.Monday, 1)) ||
		(t.Month() == time.October && nthWeekday(t, time.Monday, 4)) || // Labour
		observed(t, time.December, 25) || observed(t, time.December, 26)
}

func seHoliday(t time.Time) bool {
	switch {
	case fixed(t, time.January, 1), fixed(t, time.January, 6),
		easterOffset(t, -2), easterOffset(t, 1), easterOffset(t, 39),
		fixed(t, time.May, 1), fixed(t, time.June, 6),
		t.Month() == time.June && t.Weekday() == time.Friday && t.Day() >= 19 && t.Day() <= 25, // Midsummer Eve
		fixed(t, time.December, 24), fixed(t, time.December, 25),
		fixed(t, time.December, 26), fixed(t, time.December, 31):
		return true
	}
	return false
}

func noHoliday(t time.Time) bool {
	return fixed(t, time.January, 1) ||
		easterOffset(t, -3) || easterOffset(t, -2) || easterOffset(t, 1) || // Maundy Thu .. Easter Mon
		easterOffset(t, 39) || easterOffset(t, 50) ||
		fixed(t, time.May, 1) || fixed(t, time.May, 17) ||
		fixed(t, time.December, 24) || fixed(t, time.December, 25) ||
		fixed(t, time.December, 26) || fixed(t, time.December, 31)
}

func dkHoliday(t time.Time) bool {
	return fixed(t, time.January, 1) ||
		easterOffset(t, -3) || easterOffset(t, -2) || easterOffset(t, 1) ||
		easterOffset(t, 39) || easterOffset(t, 50) ||
		fixed(t, time.June, 5) || // Constitution Day
		fixed(t, time.December, 24) || fixed(t, time.December, 25) ||
		fixed(t, time.December, 26) || fixed(t, time.December, 31)
}
