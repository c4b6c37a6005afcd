package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// EndOfDay is 24:00, the latest value a Clock may hold. It is valid only as
// the end of an interval.
const EndOfDay Clock = 24 * 60

// ParseClock accepts "HH:MM", "H:MM" and "HH.MM".
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(strings.Replace(raw, ".", ":", 1))
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("calendar: invalid time %q", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("calendar: invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("calendar: invalid minute in %q", raw)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("calendar: invalid time %q", raw)
	}
	return Clock(h*60 + m), nil
}

// MustClock parses raw and panics on error. Intended for constants and tests.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Add returns c shifted by minutes, saturating at 00:00 and 24:00.
func (c Clock) Add(minutes int) Clock {
	next := c + Clock(minutes)
	switch {
	case next < 0:
		return 0
	case next > EndOfDay:
		return EndOfDay
	}
	return next
}

// AddWithinDay returns c shifted by minutes, or an error when the result
// falls outside 00:00-24:00.
func (c Clock) AddWithinDay(minutes int) (Clock, error) {
	next := c + Clock(minutes)
	if next < 0 || next > EndOfDay {
		return 0, fmt.Errorf("calendar: %s plus %d minutes leaves the day", c, minutes)
	}
	return next, nil
}

// Valid reports whether c lies within 00:00-24:00.
func (c Clock) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On places c on day's calendar date in day's location.
func (c Clock) On(day time.Time) time.Time {
	return StartOfDay(day).Add(time.Duration(c) * time.Minute)
}

// ClockOf returns the time of day of t.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
