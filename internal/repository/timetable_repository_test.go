package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable/internal/models"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var timetableRowColumns = []string{"timetable_id", "created_at", "department_id", "room_name", "faculty_id", "subject_id", "start_time", "end_time", "row_id"}

func TestTimetableRepositoryReadHistoryFiltersByFaculty(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("tt-1", time.Now(), "D1", "R1", "F1", "S1", "Monday 10:00", "Monday 11:00", "row-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE faculty_id = $1")).
		WithArgs("F1").
		WillReturnRows(rows)

	history, err := repo.ReadHistory(context.Background(), "F1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "tt-1", history[0].ID)
	assert.Equal(t, "row-1", history[0].RowID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByTimetableOrdersByWeek(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("tt-1", now, "D1", "R1", "F1", "S1", "Friday 10:00", "Friday 11:00", "row-1").
		AddRow("tt-1", now, "D1", "R1", "F1", "S2", "Monday 14:00", "Monday 15:00", "row-2").
		AddRow("tt-1", now, "D1", "R2", "F2", "S3", "Monday 10:00", "Monday 12:00", "row-3").
		AddRow("tt-1", now, "D1", "R2", "F2", "S4", "Wednesday 16:00", "Wednesday 17:00", "row-4")
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE timetable_id = $1")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	result, err := repo.ListByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	var order []string
	for _, row := range result {
		order = append(order, row.RowID)
	}
	assert.Equal(t, []string{"row-3", "row-2", "row-4", "row-1"}, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReadHistoryClassifiesResourceErrors(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables")).
		WillReturnError(&pq.Error{Code: "53300", Message: "too many connections"})

	_, err := repo.ReadHistory(context.Background(), "")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrRateLimited.Code))
}

func TestTimetableRepositoryAppendRowsInTransaction(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "tt-1", sqlmock.AnyArg(), "D1", "R1", "F1", "S1", "Monday 10:00", "Monday 11:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "tt-1", sqlmock.AnyArg(), "D1", "R2", "F2", "S2", "Tuesday 14:00", "Tuesday 16:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rows := []models.TimetableRow{
		{ID: "tt-1", DepartmentID: "D1", RoomName: "R1", FacultyID: "F1", SubjectID: "S1", StartTime: "Monday 10:00", EndTime: "Monday 11:00"},
		{ID: "tt-1", DepartmentID: "D1", RoomName: "R2", FacultyID: "F2", SubjectID: "S2", StartTime: "Tuesday 14:00", EndTime: "Tuesday 16:00"},
	}
	require.NoError(t, repo.AppendRows(context.Background(), rows))
	assert.NotEmpty(t, rows[0].RowID)
	assert.False(t, rows[1].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryAppendRowsRollsBack(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.AppendRows(context.Background(), []models.TimetableRow{
		{ID: "tt-1", DepartmentID: "D1", SubjectID: "S1", StartTime: "Monday 10:00", EndTime: "Monday 11:00"},
	})
	require.Error(t, err)
	assert.False(t, appErrors.IsCode(err, appErrors.ErrRateLimited.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByDepartment(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	generated := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"timetable_id", "department_id", "generated_at", "slot_count"}).
		AddRow("tt-2", "D1", generated, 12).
		AddRow("tt-1", "D1", generated.Add(-time.Hour), 9)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY timetable_id, department_id")).
		WithArgs("D1").
		WillReturnRows(rows)

	summaries, err := repo.ListByDepartment(context.Background(), "D1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "tt-2", summaries[0].TimetableID)
	assert.Equal(t, 12, summaries[0].SlotCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteRows(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE row_id = ANY($1)")).
		WithArgs(pq.Array([]string{"row-1", "row-2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := repo.DeleteRows(context.Background(), []string{"row-1", "row-2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())

	deleted, err = repo.DeleteRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestTimetableRepositoryAssignTimetableIDNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET timetable_id = $1 WHERE row_id = $2")).
		WithArgs("tt-9", "row-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AssignTimetableID(context.Background(), "row-9", "tt-9")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryListByDepartment(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	rows := sqlmock.NewRows([]string{"department_id", "room_name"}).
		AddRow("D1", "A-101").
		AddRow("D1", "B-204")
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE department_id = $1")).
		WithArgs("D1").
		WillReturnRows(rows)

	rooms, err := repo.ListByDepartment(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-101", "B-204"}, rooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAndCacheRepositoriesWithoutRedis(t *testing.T) {
	locks := NewLockRepository(nil)
	ok, err := locks.Acquire(context.Background(), "lock:D1", "token", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, locks.Release(context.Background(), "lock:D1", "token"))

	cache := NewCacheRepository(nil, nil)
	var dest []models.TimetableRow
	assert.ErrorIs(t, cache.Get(context.Background(), "history:all", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, cache.Set(context.Background(), "history:all", dest, time.Minute))
	assert.NoError(t, cache.DeleteByPattern(context.Background(), "history:*"))
}
