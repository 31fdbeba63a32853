package utils

import (
	"regexp"
	"strconv"
	"time"
)

// WatchedDateLayout is the calendar date format used for watched dates
const WatchedDateLayout = "2006-01-02"

var yearRegex = regexp.MustCompile(`^(\d{4})-\d{2}-\d{2}$`)

// ParseWatchedDate parses a YYYY-MM-DD calendar date.
// Returns false for empty or malformed dates (including impossible days like 2023-02-30)
func ParseWatchedDate(value string) (time.Time, bool) {
	if !yearRegex.MatchString(value) {
		return time.Time{}, false
	}

	date, err := time.Parse(WatchedDateLayout, value)
	if err != nil {
		return time.Time{}, false
	}

	return date, true
}

// WatchedYear extracts the calendar year from a watched date
// Returns 0 if the date is malformed
func WatchedYear(value string) int {
	if _, ok := ParseWatchedDate(value); !ok {
		return 0
	}

	year, err := strconv.Atoi(value[:4])
	if err != nil {
		return 0
	}
	return year
}
