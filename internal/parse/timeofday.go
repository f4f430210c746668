package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var timeOfDayRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:mm" string. "24:00" is accepted as end of day.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	m := timeOfDayRe.FindStringSubmatch(strings.TrimSpace(raw))
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:mm", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if min > 59 || h > 24 || (h == 24 && min != 0) {
		return 0, fmt.Errorf("invalid time of day %q: out of range", raw)
	}
	return TimeOfDay(h*60 + min), nil
}

// String formats the value back to "HH:mm".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// ParseDate parses a "YYYY-MM-DD" calendar day at midnight in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}

// FormatDate renders t as a calendar day in its own location.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Combine resolves a calendar day and a time of day to an instant in loc.
func Combine(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	// time.Date normalizes DST gaps; Add would drift by an hour across a transition.
	return time.Date(d.Year(), d.Month(), d.Day(), int(tod)/60, int(tod)%60, 0, 0, loc), nil
}

// MonthBounds returns the first day of date's month and the first day of the next month,
// both formatted as YYYY-MM-DD so they can be compared against stored dates.
func MonthBounds(date string) (string, string, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return "", "", err
	}
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return FormatDate(first), FormatDate(first.AddDate(0, 1, 0)), nil
}
