package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable/internal/models"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
	"github.com/noah-isme/campus-timetable/pkg/export"
)

// ExportFormat names a grid download format.
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

const dayHeader = "Day"

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Warnings    []string
}

type timetableSource interface {
	TimetableRows(ctx context.Context, timetableID string) ([]models.TimetableRow, error)
	Proposal(id string) (*models.TimetableProposal, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders stored timetables and proposals as weekly grids.
type ExportService struct {
	source timetableSource
	csv    csvRenderer
	pdf    titledRenderer
	xlsx   titledRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(source timetableSource, logger *zap.Logger, csv csvRenderer, pdf, xlsx titledRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// ExportTimetable renders a stored timetable.
func (s *ExportService) ExportTimetable(ctx context.Context, timetableID string, format ExportFormat) (*ExportFile, error) {
	rows, err := s.source.TimetableRows(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	slots := models.SlotsFromRows(rows)
	title := fmt.Sprintf("Timetable %s", timetableID)
	if len(rows) > 0 && rows[0].DepartmentID != "" {
		title = fmt.Sprintf("Timetable %s (%s)", timetableID, rows[0].DepartmentID)
	}
	return s.render(slots, format, title, "timetable_"+timetableID)
}

// ExportProposal renders an unsaved proposal.
func (s *ExportService) ExportProposal(ctx context.Context, proposalID string, format ExportFormat) (*ExportFile, error) {
	proposal, err := s.source.Proposal(proposalID)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Proposed timetable (%s)", proposal.DepartmentID)
	return s.render(proposal.Slots, format, title, "proposal_"+proposalID)
}

func (s *ExportService) render(slots []models.Slot, format ExportFormat, title, basename string) (*ExportFile, error) {
	grid, warnings := BuildGrid(slots)
	for _, warning := range warnings {
		s.logger.Warn("grid export warning", zap.String("warning", warning))
	}

	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "", ExportFormatXLSX:
		format = ExportFormatXLSX
		data, err = s.xlsx.Render(grid, title)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatCSV:
		data, err = s.csv.Render(grid)
		contentType = "text/csv"
	case ExportFormatPDF:
		data, err = s.pdf.Render(grid, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable grid")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s.%s", basename, format),
		ContentType: contentType,
		Data:        data,
		Warnings:    warnings,
	}, nil
}

// BuildGrid lays slots out as five day rows and eight time columns. The
// lunch column always reads "Lunch"; hours covered by a multi-hour class
// beyond its start read as continuations when nothing else starts there.
func BuildGrid(slots []models.Slot) (export.Dataset, []string) {
	columns := models.GridHeaders()
	headers := append([]string{dayHeader}, columns...)

	cells := make(map[models.Day][]string, len(models.Days))
	for _, day := range models.Days {
		cells[day] = make([]string, models.GridColumns)
		cells[day][models.LunchColumn] = models.LunchLabel
	}

	var warnings []string
	var placed []models.Slot
	for _, slot := range slots {
		row, ok := cells[slot.Day]
		col, colOK := models.GridColumn(slot.StartHour)
		if !ok || !colOK || !models.IsStartHour(slot.StartHour) {
			warnings = append(warnings, fmt.Sprintf("Skipped %s at %s: not a teaching slot", slot.SubjectID, slot.StartTime()))
			continue
		}
		text := fmt.Sprintf("%s (%s, %s)", slot.SubjectID, slot.FacultyID, slot.Room)
		if row[col] == "" {
			row[col] = text
		} else {
			row[col] = strings.Join([]string{row[col], text}, "\n")
		}
		placed = append(placed, slot)
	}
	for _, slot := range placed {
		row := cells[slot.Day]
		for hour := slot.StartHour + 1; hour < slot.EndHour; hour++ {
			if col, ok := models.GridColumn(hour); ok && row[col] == "" {
				row[col] = models.ContinueMarker
			}
		}
	}

	dataset := export.Dataset{Headers: headers, Shaded: []string{models.LunchColumnName}}
	for _, day := range models.Days {
		record := map[string]string{dayHeader: string(day)}
		for i, header := range columns {
			record[header] = cells[day][i]
		}
		dataset.Rows = append(dataset.Rows, record)
	}
	return dataset, warnings
}
