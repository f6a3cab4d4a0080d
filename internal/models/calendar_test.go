package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalLegal(t *testing.T) {
	cases := []struct {
		name     string
		start    int
		duration int
		want     bool
	}{
		{"morning single", 10, 1, true},
		{"ends at lunch", 10, 3, true},
		{"ends at lunch from noon", 12, 1, true},
		{"crosses lunch", 12, 2, false},
		{"crosses lunch from eleven", 11, 3, false},
		{"lunch start", 13, 1, false},
		{"afternoon block", 15, 3, true},
		{"past closing", 16, 3, false},
		{"last hour", 17, 1, true},
		{"zero duration", 10, 0, false},
		{"too long", 14, 4, false},
		{"not a slot", 9, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IntervalLegal(tc.start, tc.duration))
		})
	}
}

func TestParseClock(t *testing.T) {
	day, hour, minute, ok := ParseClock("Wednesday 14:00")
	assert.True(t, ok)
	assert.Equal(t, Wednesday, day)
	assert.Equal(t, 14, hour)
	assert.Equal(t, 0, minute)

	_, _, _, ok = ParseClock("Saturday 10:00")
	assert.False(t, ok)
	_, _, _, ok = ParseClock("Monday")
	assert.False(t, ok)
}

func TestGridColumnsSkipLunch(t *testing.T) {
	headers := GridHeaders()
	assert.Len(t, headers, GridColumns)
	assert.Equal(t, LunchColumnName, headers[LunchColumn])

	for _, hour := range TimeSlots {
		col, ok := GridColumn(hour)
		assert.True(t, ok)
		assert.NotEqual(t, LunchColumn, col)
		assert.Equal(t, headers[col][:5], FormatClock(Monday, hour)[len("Monday "):])
	}
	_, ok := GridColumn(LunchHour)
	assert.False(t, ok)
}

func TestRowRoundTripsThroughSlot(t *testing.T) {
	slot := NewSlot(Tuesday, 14, 2, "F1", "S1", "R1")
	row := RowFromSlot(slot, "tt-1", "D1", time.Now())

	assert.Equal(t, "Tuesday 14:00", row.StartTime)
	assert.Equal(t, "Tuesday 16:00", row.EndTime)

	back, ok := row.Slot()
	assert.True(t, ok)
	assert.Equal(t, slot, back)
}

func TestSlotOverlaps(t *testing.T) {
	a := NewSlot(Monday, 10, 2, "F1", "S1", "R1")
	assert.True(t, a.Overlaps(NewSlot(Monday, 11, 1, "F2", "S2", "R2")))
	assert.False(t, a.Overlaps(NewSlot(Monday, 12, 1, "F2", "S2", "R2")))
	assert.False(t, a.Overlaps(NewSlot(Tuesday, 10, 1, "F2", "S2", "R2")))
}
