package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Day is a teaching weekday.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
)

const (
	// LunchHour is reserved and never a legal start hour.
	LunchHour = 13
	// ClosingHour bounds the end of every class.
	ClosingHour = 18
	// FridayAfternoonStart is the first Friday start hour skipped when Friday afternoons are avoided.
	FridayAfternoonStart = 15

	MinDuration = 1
	MaxDuration = 3
)

var (
	// Days lists the teaching week in order.
	Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}
	// TimeSlots lists legal start hours in order.
	TimeSlots = []int{10, 11, 12, 14, 15, 16, 17}

	dayIndex = map[Day]int{Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3, Friday: 4}
)

// Index returns the position of the day within the week or -1.
func (d Day) Index() int {
	if idx, ok := dayIndex[d]; ok {
		return idx
	}
	return -1
}

// Valid reports whether the day is a teaching day.
func (d Day) Valid() bool {
	return d.Index() >= 0
}

// ParseDay resolves a weekday name case-insensitively.
func ParseDay(raw string) (Day, bool) {
	raw = strings.TrimSpace(raw)
	for _, day := range Days {
		if strings.EqualFold(string(day), raw) {
			return day, true
		}
	}
	return "", false
}

// IsStartHour reports whether classes may start at the hour.
func IsStartHour(hour int) bool {
	for _, slot := range TimeSlots {
		if slot == hour {
			return true
		}
	}
	return false
}

// EndHour computes the end of a class starting at start.
func EndHour(start, duration int) int {
	return start + duration
}

// CrossesLunch reports whether [start, start+duration) contains the lunch hour.
func CrossesLunch(start, duration int) bool {
	return start < LunchHour && EndHour(start, duration) > LunchHour
}

// IntervalLegal reports whether a class with the given start and duration fits the grid.
func IntervalLegal(start, duration int) bool {
	if !IsStartHour(start) {
		return false
	}
	if duration < MinDuration || duration > MaxDuration {
		return false
	}
	if EndHour(start, duration) > ClosingHour {
		return false
	}
	return !CrossesLunch(start, duration)
}

// IsFridayAfternoon reports whether the start falls into the avoidable Friday window.
func IsFridayAfternoon(day Day, start int) bool {
	return day == Friday && start >= FridayAfternoonStart
}

// FormatClock renders a persisted time value such as "Monday 10:00".
func FormatClock(day Day, hour int) string {
	return fmt.Sprintf("%s %02d:00", day, hour)
}

// ParseClock splits "<Day> HH:MM" into its day, hour and minute parts.
func ParseClock(raw string) (Day, int, int, bool) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return "", 0, 0, false
	}
	day, ok := ParseDay(parts[0])
	if !ok {
		return "", 0, 0, false
	}
	clock := strings.SplitN(parts[1], ":", 2)
	if len(clock) != 2 {
		return "", 0, 0, false
	}
	hour, err := strconv.Atoi(clock[0])
	if err != nil {
		return "", 0, 0, false
	}
	minute, err := strconv.Atoi(clock[1])
	if err != nil {
		return "", 0, 0, false
	}
	return day, hour, minute, true
}

// Grid layout used by exporters: seven teaching hours plus the lunch column.
const (
	GridColumns     = 8
	LunchColumn     = 3
	LunchLabel      = "Lunch"
	ContinueMarker  = "↳ (cont.)"
	LunchColumnName = "Lunch (13:00-14:00)"
)

// GridHeaders returns the column headers of the weekly grid.
func GridHeaders() []string {
	headers := make([]string, 0, GridColumns)
	for _, hour := range []int{10, 11, 12} {
		headers = append(headers, fmt.Sprintf("%02d:00-%02d:00", hour, hour+1))
	}
	headers = append(headers, LunchColumnName)
	for _, hour := range []int{14, 15, 16, 17} {
		headers = append(headers, fmt.Sprintf("%02d:00-%02d:00", hour, hour+1))
	}
	return headers
}

// GridColumn maps a start hour to its grid column.
func GridColumn(hour int) (int, bool) {
	switch {
	case hour >= 10 && hour <= 12:
		return hour - 10, true
	case hour >= 14 && hour <= 17:
		return hour - 10, true
	default:
		return 0, false
	}
}
