package models

import (
	"sort"
	"time"
)

// SchedulingRequest is one confirmed faculty-subject demand row.
type SchedulingRequest struct {
	FacultyID      string
	FacultyName    string
	SubjectID      string
	SubjectName    string
	ClassesPerWeek int
	Duration       int
	Room           string
}

// Slot is one scheduled class occurrence.
type Slot struct {
	Day       Day    `json:"day"`
	StartHour int    `json:"startHour"`
	EndHour   int    `json:"endHour"`
	FacultyID string `json:"facultyId"`
	SubjectID string `json:"subjectId"`
	Room      string `json:"room"`
	Duration  int    `json:"duration"`
}

// NewSlot builds a slot and derives its end hour.
func NewSlot(day Day, start, duration int, facultyID, subjectID, room string) Slot {
	return Slot{
		Day:       day,
		StartHour: start,
		EndHour:   EndHour(start, duration),
		FacultyID: facultyID,
		SubjectID: subjectID,
		Room:      room,
		Duration:  duration,
	}
}

// StartTime renders the persisted start value.
func (s Slot) StartTime() string {
	return FormatClock(s.Day, s.StartHour)
}

// EndTime renders the persisted end value.
func (s Slot) EndTime() string {
	return FormatClock(s.Day, s.EndHour)
}

// Overlaps reports whether both slots share a day and intersecting [start,end) interval.
func (s Slot) Overlaps(other Slot) bool {
	return s.Day == other.Day && s.StartHour < other.EndHour && s.EndHour > other.StartHour
}

// TimetableRow is the persisted wire shape of an accepted slot. Field order is fixed.
type TimetableRow struct {
	ID           string    `db:"timetable_id" json:"id"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	DepartmentID string    `db:"department_id" json:"departmentId"`
	RoomName     string    `db:"room_name" json:"roomName"`
	FacultyID    string    `db:"faculty_id" json:"facultyId"`
	SubjectID    string    `db:"subject_id" json:"subjectId"`
	StartTime    string    `db:"start_time" json:"startTime"`
	EndTime      string    `db:"end_time" json:"endTime"`
	RowID        string    `db:"row_id" json:"-"`
}

// Slot converts a persisted row back into a slot. ok is false for unparseable rows.
func (r TimetableRow) Slot() (Slot, bool) {
	day, start, _, ok := ParseClock(r.StartTime)
	if !ok {
		return Slot{}, false
	}
	endDay, end, _, ok := ParseClock(r.EndTime)
	if !ok || endDay != day || end <= start {
		return Slot{}, false
	}
	return NewSlot(day, start, end-start, r.FacultyID, r.SubjectID, r.RoomName), true
}

// RowFromSlot renders a slot into the persisted shape.
func RowFromSlot(slot Slot, timetableID, departmentID string, createdAt time.Time) TimetableRow {
	return TimetableRow{
		ID:           timetableID,
		CreatedAt:    createdAt,
		DepartmentID: departmentID,
		RoomName:     slot.Room,
		FacultyID:    slot.FacultyID,
		SubjectID:    slot.SubjectID,
		StartTime:    slot.StartTime(),
		EndTime:      slot.EndTime(),
	}
}

// SlotsFromRows converts parseable rows, skipping the rest.
func SlotsFromRows(rows []TimetableRow) []Slot {
	slots := make([]Slot, 0, len(rows))
	for _, row := range rows {
		if slot, ok := row.Slot(); ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

// SortRowsByWeek orders rows Monday to Friday, then by start hour.
// Unparseable rows keep their relative order after the rest.
func SortRowsByWeek(rows []TimetableRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i].Slot()
		b, bok := rows[j].Slot()
		switch {
		case !aok || !bok:
			return aok && !bok
		case a.Day != b.Day:
			return a.Day.Index() < b.Day.Index()
		default:
			return a.StartHour < b.StartHour
		}
	})
}

// TimetableSummary describes one previously accepted timetable.
type TimetableSummary struct {
	TimetableID  string    `db:"timetable_id" json:"timetableId"`
	DepartmentID string    `db:"department_id" json:"departmentId"`
	GeneratedAt  time.Time `db:"generated_at" json:"generatedAt"`
	SlotCount    int       `db:"slot_count" json:"slotCount"`
}

// Room is a teaching room owned by a department.
type Room struct {
	DepartmentID string `db:"department_id" json:"departmentId"`
	RoomName     string `db:"room_name" json:"roomName"`
}

// GenerationMode distinguishes engine-built and user-entered schedules.
type GenerationMode string

const (
	GenerationModeAuto   GenerationMode = "auto"
	GenerationModeManual GenerationMode = "manual"
)

// GenerationFailure summarises classes of a request that could not be placed.
type GenerationFailure struct {
	FacultyID string   `json:"facultyId"`
	SubjectID string   `json:"subjectId"`
	Requested int      `json:"requested"`
	Scheduled int      `json:"scheduled"`
	Reasons   []string `json:"reasons"`
}

// TimetableProposal is a generated or manually entered schedule awaiting a save.
type TimetableProposal struct {
	ProposalID       string              `json:"proposalId"`
	TimetableID      string              `json:"timetableId,omitempty"`
	DepartmentID     string              `json:"departmentId"`
	Mode             GenerationMode      `json:"mode"`
	Slots            []Slot              `json:"slots"`
	Warnings         []string            `json:"warnings"`
	Failures         []GenerationFailure `json:"failures"`
	Conflicts        []string            `json:"conflicts"`
	RequestedClasses int                 `json:"requestedClasses"`
	PlacedClasses    int                 `json:"placedClasses"`
	CreatedAt        time.Time           `json:"createdAt"`
	ExpiresAt        time.Time           `json:"expiresAt"`
	SavedAt          *time.Time          `json:"savedAt,omitempty"`
}

// ConflictError carries every violation that made a schedule unacceptable.
type ConflictError struct {
	Message   string
	Conflicts []string
}

func (e *ConflictError) Error() string {
	return e.Message
}
