package appointment

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a wall-clock time of day in zero-padded 24-hour "HH:MM" form.
//
// Every Clock produced by ParseClock or ClockFromMinutes is fixed width, so
// comparing two Clocks as strings orders them the same way as comparing their
// minutes since midnight. Stores rely on that to run range predicates on the
// raw column.
type Clock string

const minutesPerDay = 24 * 60

// ParseClock accepts "H:MM" or "HH:MM" (00:00 to 23:59) and returns the
// zero-padded form.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	if !isDigits(h) || !isDigits(m) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	hours, _ := strconv.Atoi(h)
	mins, _ := strconv.Atoi(m)
	if hours > 23 || mins > 59 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	return ClockFromMinutes(hours*60 + mins), nil
}

// ClockFromMinutes converts minutes since midnight to a Clock. Values are
// clamped to the [00:00, 23:59] range.
func ClockFromMinutes(m int) Clock {
	if m < 0 {
		m = 0
	}
	if m >= minutesPerDay {
		m = minutesPerDay - 1
	}
	return Clock(fmt.Sprintf("%02d:%02d", m/60, m%60))
}

// Minutes returns minutes since midnight. An unparseable Clock yields -1.
func (c Clock) Minutes() int {
	parsed, err := ParseClock(string(c))
	if err != nil {
		return -1
	}
	h, _ := strconv.Atoi(string(parsed[:2]))
	m, _ := strconv.Atoi(string(parsed[3:]))
	return h*60 + m
}

func (c Clock) String() string {
	return string(c)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Interval is a half-open time-of-day range [Start, End).
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints (09:00-10:00 and 10:00-11:00) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

// DurationMinutes returns End minus Start in minutes.
func (i Interval) DurationMinutes() int {
	return i.End.Minutes() - i.Start.Minutes()
}

// NewInterval parses both ends and checks that end is strictly after start.
func NewInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if e <= s {
		return Interval{}, ErrEndBeforeStart
	}
	return Interval{Start: s, End: e}, nil
}
