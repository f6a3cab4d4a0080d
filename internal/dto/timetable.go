package dto

import "github.com/noah-isme/campus-timetable/internal/models"

// SchedulingRequestPayload is one faculty-subject demand row.
type SchedulingRequestPayload struct {
	FacultyID      string `json:"facultyId" validate:"required"`
	FacultyName    string `json:"facultyName"`
	SubjectID      string `json:"subjectId" validate:"required"`
	SubjectName    string `json:"subjectName"`
	ClassesPerWeek int    `json:"classesPerWeek" validate:"required,min=1,max=35"`
	Duration       int    `json:"duration" validate:"required,min=1,max=3"`
	Room           string `json:"room"`
}

// ManualSlotPayload is a user-entered class placement.
type ManualSlotPayload struct {
	Day       string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday"`
	StartHour int    `json:"startHour" validate:"required,min=10,max=17"`
	Duration  int    `json:"duration" validate:"required,min=1,max=3"`
	FacultyID string `json:"facultyId" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
	Room      string `json:"room" validate:"required"`
}

// GenerateTimetableRequest asks for an automatic or manual timetable proposal.
type GenerateTimetableRequest struct {
	DepartmentID         string                     `json:"departmentId" validate:"required"`
	Mode                 models.GenerationMode      `json:"mode" validate:"omitempty,oneof=auto manual"`
	Requests             []SchedulingRequestPayload `json:"requests" validate:"omitempty,max=512,dive"`
	Rooms                []string                   `json:"rooms" validate:"omitempty,dive,required"`
	AvoidFridayAfternoon *bool                      `json:"avoidFridayAfternoon"`
	ManualSlots          []ManualSlotPayload        `json:"manualSlots" validate:"omitempty,max=512,dive"`
	Commit               bool                       `json:"commit"`
}

// SaveTimetableRequest persists a stored proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// SaveTimetableResponse reports the id under which rows were written.
type SaveTimetableResponse struct {
	TimetableID string `json:"timetableId"`
	RowsWritten int    `json:"rowsWritten"`
}

// TimetableListQuery filters previous timetables.
type TimetableListQuery struct {
	DepartmentID string `form:"departmentId" json:"departmentId"`
}

// CleanTimetablesQuery controls a history cleaning pass.
type CleanTimetablesQuery struct {
	AssignMissingIDs bool   `form:"assignMissingIds"`
	Format           string `form:"format" validate:"omitempty,oneof=json csv"`
}

// InvalidTimetableRow is a row removed by cleaning. Reason is empty for rows
// that were only missing required fields.
type InvalidTimetableRow struct {
	Row    models.TimetableRow `json:"row"`
	Reason string              `json:"reason,omitempty"`
}

// CleanTimetablesResult summarises a cleaning pass.
type CleanTimetablesResult struct {
	Checked       int                   `json:"checked"`
	Removed       int                   `json:"removed"`
	AssignedIDs   int                   `json:"assignedIds"`
	MissingFields int                   `json:"missingFields"`
	Invalid       []InvalidTimetableRow `json:"invalid"`
}

// FacultyScheduleEntry is one class of a faculty across stored timetables.
type FacultyScheduleEntry struct {
	TimetableID  string     `json:"timetableId"`
	DepartmentID string     `json:"departmentId"`
	Day          models.Day `json:"day"`
	StartTime    string     `json:"startTime"`
	EndTime      string     `json:"endTime"`
	SubjectID    string     `json:"subjectId"`
	Room         string     `json:"room"`
}

// FacultyScheduleResponse is the faculty perspective view.
type FacultyScheduleResponse struct {
	FacultyID      string                 `json:"facultyId"`
	Entries        []FacultyScheduleEntry `json:"entries"`
	TeachingHours  int                    `json:"teachingHours"`
	ClassesPerDay  map[models.Day]int     `json:"classesPerDay"`
	SkippedInvalid int                    `json:"skippedInvalid"`
}
