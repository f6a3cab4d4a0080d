package service

import (
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable/internal/models"
)

// Row rejection reasons.
const (
	ReasonMissingFields = "missing required fields"
	ReasonTimeFormat    = "invalid time format"
	ReasonCrossDay      = "cross-day interval"
	ReasonOutOfRange    = "invalid or out-of-range time"
)

var clockPattern = regexp.MustCompile(`^(Monday|Tuesday|Wednesday|Thursday|Friday) \d{2}:\d{2}$`)

// RowValidator decides whether a persisted or proposed row is a legal slot.
type RowValidator struct {
	newID  func() string
	logger *zap.Logger
}

// NewRowValidator builds a validator. A nil logger is replaced by a no-op one.
func NewRowValidator(logger *zap.Logger) *RowValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowValidator{newID: uuid.NewString, logger: logger}
}

// Validate checks format and range rules for a single row. When assignMissingID
// is set and the row has no id, a new one is written to row.ID; this never
// makes the row invalid.
func (v *RowValidator) Validate(row *models.TimetableRow, assignMissingID bool) (bool, string) {
	if row == nil || row.DepartmentID == "" || row.SubjectID == "" || row.StartTime == "" || row.EndTime == "" {
		return false, ReasonMissingFields
	}
	if !clockPattern.MatchString(row.StartTime) || !clockPattern.MatchString(row.EndTime) {
		return false, ReasonTimeFormat
	}

	startDay, startHour, startMinute, ok := models.ParseClock(row.StartTime)
	if !ok {
		return false, ReasonTimeFormat
	}
	endDay, endHour, endMinute, ok := models.ParseClock(row.EndTime)
	if !ok {
		return false, ReasonTimeFormat
	}
	if startDay != endDay {
		return false, ReasonCrossDay
	}

	duration := endHour - startHour
	if startMinute != 0 || endMinute != 0 || !models.IntervalLegal(startHour, duration) {
		return false, ReasonOutOfRange
	}

	if assignMissingID && row.ID == "" {
		row.ID = v.newID()
		v.logger.Info("assigned timetable id to row",
			zap.String("timetable_id", row.ID),
			zap.String("subject_id", row.SubjectID),
		)
	}
	return true, ""
}

// ValidateSlot applies the row rules to an in-memory slot.
func (v *RowValidator) ValidateSlot(slot models.Slot, departmentID string) (bool, string) {
	row := models.TimetableRow{
		DepartmentID: departmentID,
		SubjectID:    slot.SubjectID,
		StartTime:    slot.StartTime(),
		EndTime:      slot.EndTime(),
	}
	if !slot.Day.Valid() {
		return false, ReasonTimeFormat
	}
	if slot.EndHour != models.EndHour(slot.StartHour, slot.Duration) {
		return false, ReasonOutOfRange
	}
	return v.Validate(&row, false)
}
