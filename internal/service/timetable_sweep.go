package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/campus-timetable/internal/models"
)

// Sweep checks a manually entered schedule pairwise and returns distinct,
// sorted violation messages. An empty result means the schedule is clean.
func Sweep(slots []models.Slot) []string {
	found := make(map[string]struct{})
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			for _, msg := range pairViolations(slots[i], slots[j]) {
				found[msg] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(found))
	for msg := range found {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

func pairViolations(a, b models.Slot) []string {
	if a.Day != b.Day {
		return nil
	}
	first, second := a, b
	if second.StartHour < first.StartHour {
		first, second = second, first
	}

	var out []string
	if a.Overlaps(b) {
		if a.Room != "" && a.Room == b.Room {
			out = append(out, fmt.Sprintf("Room conflict: %s at %s", a.Room, second.StartTime()))
		}
		if a.FacultyID == b.FacultyID {
			out = append(out, fmt.Sprintf("Faculty conflict: %s at %s", a.FacultyID, second.StartTime()))
		}
		return out
	}

	if a.FacultyID == b.FacultyID {
		if _, conflict := DetectGap(a, []models.Slot{b}); conflict {
			out = append(out, fmt.Sprintf("Faculty has no gap between classes: %s on %s at %02d:00 and %02d:00",
				a.FacultyID, a.Day, first.StartHour, second.StartHour))
		}
	}
	return out
}
