package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Minute is a time of day expressed as minutes since midnight.
type Minute int

// MinuteOf converts a timestamp's time-of-day to minutes since midnight.
func MinuteOf(t time.Time) Minute {
	return Minute(t.Hour()*60 + t.Minute())
}

// Interval is one daily "start-end" window.
type Interval struct {
	Start Minute
	End   Minute
}

// Contains reports whether the given time of day falls inside the interval.
// A zero-length interval (start == end) covers the whole day; this is how
// "00:00-00:00" is interpreted, matching the always-on convention rather
// than an empty window. When start > end the interval wraps past midnight.
func (iv Interval) Contains(t Minute) bool {
	switch {
	case iv.Start == iv.End:
		return true
	case iv.Start < iv.End:
		return iv.Start <= t && t <= iv.End
	default:
		return t >= iv.Start || t <= iv.End
	}
}

// ParseClock parses a "HH:mm" time of day.
func ParseClock(s string) (Minute, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, eris.Errorf("schedule: malformed clock time %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, eris.Wrapf(err, "schedule: parse hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, eris.Wrapf(err, "schedule: parse minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, eris.Errorf("schedule: clock time %q out of range", s)
	}
	return Minute(hour*60 + minute), nil
}

// ParseInterval parses a single "HH:mm-HH:mm" window.
func ParseInterval(s string) (Interval, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Interval{}, eris.Errorf("schedule: malformed interval %q", s)
	}
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

// ParseIntervalList parses a delimited list of intervals, split on ';' or
// ','. Empty segments and segments that fail to parse are dropped so that a
// partially malformed schedule degrades instead of failing outright. Output
// order matches input order.
func ParseIntervalList(text string) []Interval {
	segments := strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == ','
	})

	var intervals []Interval
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		iv, err := ParseInterval(seg)
		if err != nil {
			continue
		}
		intervals = append(intervals, iv)
	}
	return intervals
}

func anyContains(intervals []Interval, t Minute) bool {
	for _, iv := range intervals {
		if iv.Contains(t) {
			return true
		}
	}
	return false
}
