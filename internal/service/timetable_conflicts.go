package service

import (
	"fmt"

	"github.com/noah-isme/campus-timetable/internal/models"
)

// ConflictKind labels the rule a slot violated.
type ConflictKind string

const (
	ConflictFaculty ConflictKind = "FACULTY"
	ConflictRoom    ConflictKind = "ROOM"
	ConflictGap     ConflictKind = "GAP"
)

// DetectFacultyOverlap reports whether the candidate's faculty is already
// teaching during any part of the candidate interval.
func DetectFacultyOverlap(candidate models.Slot, existing []models.Slot) (string, bool) {
	for _, slot := range existing {
		if slot.FacultyID != candidate.FacultyID || !candidate.Overlaps(slot) {
			continue
		}
		return fmt.Sprintf("Faculty %s already scheduled at %s to %s for Subject %s",
			slot.FacultyID, slot.StartTime(), slot.EndTime(), slot.SubjectID), true
	}
	return "", false
}

// DetectRoomOverlap reports whether the candidate's room is booked during any
// part of the candidate interval.
func DetectRoomOverlap(candidate models.Slot, existing []models.Slot) (string, bool) {
	if candidate.Room == "" {
		return "", false
	}
	for _, slot := range existing {
		if slot.Room != candidate.Room || !candidate.Overlaps(slot) {
			continue
		}
		return fmt.Sprintf("Room %s already booked at %s to %s by Faculty %s for Subject %s",
			slot.Room, slot.StartTime(), slot.EndTime(), slot.FacultyID, slot.SubjectID), true
	}
	return "", false
}

// DetectGap enforces a free hour around every 1-hour class of a faculty.
//
// A 1-hour candidate at h conflicts with a slot of the same faculty on the
// same day starting at h-1 or h+1 (when those are legal start hours), and
// with a multi-hour block ending at h or starting at h+1. Multi-hour
// candidates never need a gap of their own, but they may not be placed so
// that an existing 1-hour slot loses its gap.
func DetectGap(candidate models.Slot, existing []models.Slot) (string, bool) {
	for _, slot := range existing {
		if slot.FacultyID != candidate.FacultyID || slot.Day != candidate.Day {
			continue
		}
		if slot.StartHour == candidate.StartHour && slot.EndHour == candidate.EndHour {
			continue
		}
		single, other := candidate, slot
		if candidate.Duration != 1 {
			if slot.Duration != 1 {
				continue
			}
			single, other = slot, candidate
		}
		if adjacentToSingle(single, other) {
			return fmt.Sprintf("Faculty %s has no gap between %s and %s",
				candidate.FacultyID, slot.StartTime(), candidate.StartTime()), true
		}
	}
	return "", false
}

// adjacentToSingle reports whether other leaves no free hour next to the 1-hour slot single.
func adjacentToSingle(single, other models.Slot) bool {
	h := single.StartHour
	if other.Duration == 1 {
		if models.IsStartHour(h-1) && other.StartHour == h-1 {
			return true
		}
		return models.IsStartHour(h+1) && other.StartHour == h+1
	}
	return other.EndHour-1 == h-1 || other.StartHour == h+1
}
