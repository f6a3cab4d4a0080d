package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable/internal/dto"
	"github.com/noah-isme/campus-timetable/internal/models"
	"github.com/noah-isme/campus-timetable/internal/service"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
	"github.com/noah-isme/campus-timetable/pkg/export"
	"github.com/noah-isme/campus-timetable/pkg/response"
)

type timetablePipeline interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*models.TimetableProposal, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error)
	Proposal(id string) (*models.TimetableProposal, error)
	ListTimetables(ctx context.Context, query dto.TimetableListQuery) ([]models.TimetableSummary, error)
	TimetableRows(ctx context.Context, timetableID string) ([]models.TimetableRow, error)
	FacultySchedule(ctx context.Context, facultyID string) (*dto.FacultyScheduleResponse, error)
	CleanHistory(ctx context.Context, query dto.CleanTimetablesQuery) (*dto.CleanTimetablesResult, error)
}

type gridExporter interface {
	ExportTimetable(ctx context.Context, timetableID string, format service.ExportFormat) (*service.ExportFile, error)
	ExportProposal(ctx context.Context, proposalID string, format service.ExportFormat) (*service.ExportFile, error)
}

var invalidRowHeaders = []string{"row_id", "timetable_id", "department_id", "room_name", "faculty_id", "subject_id", "start_time", "end_time", "reason"}

// TimetableHandler exposes timetable generation, browsing and export endpoints.
type TimetableHandler struct {
	service  timetablePipeline
	exporter gridExporter
	csv      *export.CSVExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, exporter *service.ExportService) *TimetableHandler {
	return &TimetableHandler{service: svc, exporter: exporter, csv: export.NewCSVExporter()}
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Description Auto mode places every requested class greedily; manual mode checks user-entered slots and refuses any conflict.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generate timetable payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	proposal, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if proposal.SavedAt != nil {
		status = http.StatusCreated
	}
	response.JSON(c, status, proposal, map[string]interface{}{
		"placed":    proposal.PlacedClasses,
		"requested": proposal.RequestedClasses,
		"saved":     proposal.SavedAt != nil,
	})
}

// Save godoc
// @Summary Save a timetable proposal
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save timetable payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /timetables/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	saved, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, saved)
}

// Proposal godoc
// @Summary Get an unsaved timetable proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id} [get]
func (h *TimetableHandler) Proposal(c *gin.Context) {
	proposal, err := h.service.Proposal(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// List godoc
// @Summary List previous timetables
// @Tags Timetables
// @Produce json
// @Param departmentId query string false "Department ID"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	query := dto.TimetableListQuery{DepartmentID: c.Query("departmentId")}
	result, err := h.service.ListTimetables(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"count": len(result)})
}

// Slots godoc
// @Summary Get rows of a stored timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots [get]
func (h *TimetableHandler) Slots(c *gin.Context) {
	rows, err := h.service.TimetableRows(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows)
}

// ExportTimetable godoc
// @Summary Download a stored timetable as a weekly grid
// @Tags Timetables
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Timetable ID"
// @Param format query string false "xlsx, csv or pdf" default(xlsx)
// @Success 200 {file} file
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) ExportTimetable(c *gin.Context) {
	file, err := h.exporter.ExportTimetable(c.Request.Context(), c.Param("id"), service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.download(c, file)
}

// ExportProposal godoc
// @Summary Download an unsaved proposal as a weekly grid
// @Tags Timetables
// @Param id path string true "Proposal ID"
// @Param format query string false "xlsx, csv or pdf" default(xlsx)
// @Success 200 {file} file
// @Router /proposals/{id}/export [get]
func (h *TimetableHandler) ExportProposal(c *gin.Context) {
	file, err := h.exporter.ExportProposal(c.Request.Context(), c.Param("id"), service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.download(c, file)
}

// FacultySchedule godoc
// @Summary Get every stored class of a faculty member
// @Tags Faculty
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /faculty/{facultyId}/schedule [get]
func (h *TimetableHandler) FacultySchedule(c *gin.Context) {
	result, err := h.service.FacultySchedule(c.Request.Context(), c.Param("facultyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Clean godoc
// @Summary Validate stored rows and delete the invalid ones
// @Tags Timetables
// @Produce json
// @Produce text/csv
// @Param assignMissingIds query bool false "Assign ids to rows without a timetable id"
// @Param format query string false "json or csv" default(json)
// @Success 200 {object} response.Envelope
// @Router /timetables/clean [post]
func (h *TimetableHandler) Clean(c *gin.Context) {
	var query dto.CleanTimetablesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clean query"))
		return
	}
	result, err := h.service.CleanHistory(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if query.Format != "csv" {
		response.JSON(c, http.StatusOK, result)
		return
	}

	dataset := export.Dataset{Headers: invalidRowHeaders}
	for _, item := range result.Invalid {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"row_id":        item.Row.RowID,
			"timetable_id":  item.Row.ID,
			"department_id": item.Row.DepartmentID,
			"room_name":     item.Row.RoomName,
			"faculty_id":    item.Row.FacultyID,
			"subject_id":    item.Row.SubjectID,
			"start_time":    item.Row.StartTime,
			"end_time":      item.Row.EndTime,
			"reason":        item.Reason,
		})
	}
	data, err := h.csv.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invalid rows"))
		return
	}
	c.Header("X-Rows-Removed", strconv.Itoa(result.Removed))
	response.Attachment(c, "invalid_timetable_rows.csv", "text/csv", data)
}

func (h *TimetableHandler) download(c *gin.Context, file *service.ExportFile) {
	if len(file.Warnings) > 0 {
		c.Header("X-Export-Warnings", strconv.Itoa(len(file.Warnings)))
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
