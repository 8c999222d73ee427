package booking

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// clockToMinutes converts an HH:MM string to minutes since midnight.
func clockToMinutes(clock string) (int, error) {
	t, err := time.Parse(timeLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// timesOverlap reports whether [aStart, aEnd) and [bStart, bEnd)
// intersect. Half-open intervals: back-to-back slots do not overlap.
// Malformed times are treated as non-overlapping.
func timesOverlap(aStart, aEnd, bStart, bEnd string) bool {
	as, err := clockToMinutes(aStart)
	if err != nil {
		return false
	}
	ae, err := clockToMinutes(aEnd)
	if err != nil {
		return false
	}
	bs, err := clockToMinutes(bStart)
	if err != nil {
		return false
	}
	be, err := clockToMinutes(bEnd)
	if err != nil {
		return false
	}
	return as < be && bs < ae
}

func validDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

// weekdayName returns the lowercase english weekday for a YYYY-MM-DD date.
func weekdayName(date string) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return strings.ToLower(t.Weekday().String()), nil
}

// startsBefore reports whether the (date, startTime) pair falls before
// now in the clinic timezone.
func startsBefore(date, startTime string, now time.Time, loc *time.Location) bool {
	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+startTime, loc)
	if err != nil {
		return false
	}
	return start.Before(now.In(loc))
}
