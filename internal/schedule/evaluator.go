package schedule

import (
	"strings"
	"time"
)

// Schedule is the alert-window configuration the evaluator consumes. String
// fields hold the raw user-entered values; parsing failures degrade to "not
// configured" rather than errors.
type Schedule struct {
	Enabled bool
	Always  bool
	AllDay  bool

	// Weekdays is a delimited list of three-letter day abbreviations,
	// e.g. "Mon,Tue,Wed". An empty set matches no day.
	Weekdays string

	// Single work window with one lunch break, used when Shifts is empty.
	WorkStart  string
	WorkEnd    string
	LunchStart string
	LunchEnd   string

	// Shifts is a delimited list of "HH:mm-HH:mm" windows. When non-empty it
	// supersedes the single work window.
	Shifts string

	// Excluded is a delimited list of windows subtracted from whatever would
	// otherwise be permitted, in every mode except Always.
	Excluded string
}

// AlertPermitted reports whether alert sending is allowed at the given
// moment. It is pure: all inputs arrive via sched and now.
//
// Precedence: Enabled gates everything; Always bypasses every other check;
// then the weekday set applies, followed by one of all-day, multi-shift, or
// the single work/lunch window, each overlaid with the excluded intervals.
// When no window model is configured at all the answer is false.
func AlertPermitted(sched Schedule, now time.Time) bool {
	if !sched.Enabled {
		return false
	}
	if sched.Always {
		return true
	}

	if !weekdayAllowed(sched.Weekdays, now.Weekday()) {
		return false
	}

	t := MinuteOf(now)
	excluded := ParseIntervalList(sched.Excluded)

	if sched.AllDay {
		return !anyContains(excluded, t)
	}

	if shifts := ParseIntervalList(sched.Shifts); len(shifts) > 0 {
		return anyContains(shifts, t) && !anyContains(excluded, t)
	}

	work, err := parseWindow(sched.WorkStart, sched.WorkEnd)
	if err != nil {
		// No shifts and no parseable work window: no schedule is defined,
		// so fail safe and permit nothing.
		return false
	}
	if !work.Contains(t) {
		return false
	}

	if lunch, err := parseWindow(sched.LunchStart, sched.LunchEnd); err == nil {
		// A zero-length lunch window means "no lunch break", not "all day";
		// the full-day rule applies only to work and shift windows.
		if lunch.Start != lunch.End && lunch.Contains(t) {
			return false
		}
	}

	return !anyContains(excluded, t)
}

func parseWindow(from, to string) (Interval, error) {
	start, err := ParseClock(from)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(to)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

func weekdayAllowed(weekdays string, day time.Weekday) bool {
	abbr := day.String()[:3]
	for _, d := range strings.FieldsFunc(weekdays, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		if strings.EqualFold(strings.TrimSpace(d), abbr) {
			return true
		}
	}
	return false
}
