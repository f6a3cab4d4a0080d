package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-timetable/internal/models"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
)

const timetableColumns = `timetable_id, created_at, department_id, room_name, faculty_id, subject_id, start_time, end_time, row_id`

// TimetableRepository persists accepted timetable rows.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ReadHistory returns every persisted row, or only the rows of one faculty.
func (r *TimetableRepository) ReadHistory(ctx context.Context, facultyID string) ([]models.TimetableRow, error) {
	query := "SELECT " + timetableColumns + " FROM timetables"
	var args []interface{}
	if facultyID != "" {
		query += " WHERE faculty_id = $1"
		args = append(args, facultyID)
	}
	query += " ORDER BY created_at ASC, row_id ASC"

	var rows []models.TimetableRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify("read timetable history", err)
	}
	return rows, nil
}

// AppendRows inserts all rows in one transaction.
func (r *TimetableRepository) AppendRows(ctx context.Context, rows []models.TimetableRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin append timetable rows", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `
INSERT INTO timetables (row_id, timetable_id, created_at, department_id, room_name, faculty_id, subject_id, start_time, end_time)
VALUES (:row_id, :timetable_id, :created_at, :department_id, :room_name, :faculty_id, :subject_id, :start_time, :end_time)`

	now := time.Now().UTC()
	for i := range rows {
		row := &rows[i]
		if row.RowID == "" {
			row.RowID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, query, row); err != nil {
			return classify("insert timetable row", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return classify("commit timetable rows", err)
	}
	return nil
}

// ListByDepartment groups persisted rows into timetables, newest first.
func (r *TimetableRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.TimetableSummary, error) {
	conditions := []string{"timetable_id <> ''"}
	var args []interface{}
	if departmentID != "" {
		args = append(args, departmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}

	query := `SELECT timetable_id, department_id, MIN(created_at) AS generated_at, COUNT(*) AS slot_count
FROM timetables WHERE ` + strings.Join(conditions, " AND ") + `
GROUP BY timetable_id, department_id ORDER BY generated_at DESC`

	var summaries []models.TimetableSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, classify("list timetables", err)
	}
	return summaries, nil
}

// ListByTimetable returns the rows of one stored timetable in weekly order.
// start_time strings do not sort by weekday, so ordering happens here.
func (r *TimetableRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableRow, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE timetable_id = $1"
	var rows []models.TimetableRow
	if err := r.db.SelectContext(ctx, &rows, query, timetableID); err != nil {
		return nil, classify("list timetable rows", err)
	}
	models.SortRowsByWeek(rows)
	return rows, nil
}

// DeleteRows removes rows by their primary key and reports how many went away.
func (r *TimetableRepository) DeleteRows(ctx context.Context, rowIDs []string) (int64, error) {
	if len(rowIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetables WHERE row_id = ANY($1)`, pq.Array(rowIDs))
	if err != nil {
		return 0, classify("delete timetable rows", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete timetable rows affected: %w", err)
	}
	return affected, nil
}

// AssignTimetableID stores an id on a row that was persisted without one.
func (r *TimetableRepository) AssignTimetableID(ctx context.Context, rowID, timetableID string) error {
	const query = `UPDATE timetables SET timetable_id = $1 WHERE row_id = $2`
	res, err := r.db.ExecContext(ctx, query, timetableID, rowID)
	if err != nil {
		return classify("assign timetable id", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable row not found")
	}
	return nil
}

// classify maps insufficient-resource errors from PostgreSQL to the
// rate-limited code so callers can back off; anything else is wrapped as-is.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "53" {
		return appErrors.Wrap(err, appErrors.ErrRateLimited.Code, appErrors.ErrRateLimited.Status, op+": "+appErrors.ErrRateLimited.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
