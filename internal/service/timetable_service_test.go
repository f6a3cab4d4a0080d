package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable/internal/dto"
	"github.com/noah-isme/campus-timetable/internal/models"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
	"github.com/noah-isme/campus-timetable/pkg/retry"
)

type stubTimetableStore struct {
	history    []models.TimetableRow
	appended   [][]models.TimetableRow
	appendErrs []error
	readCalls  int
	deleted    []string
	assigned   map[string]string
	summaries  []models.TimetableSummary
}

func (s *stubTimetableStore) ReadHistory(_ context.Context, facultyID string) ([]models.TimetableRow, error) {
	s.readCalls++
	if facultyID == "" {
		return s.history, nil
	}
	var rows []models.TimetableRow
	for _, row := range s.history {
		if row.FacultyID == facultyID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *stubTimetableStore) AppendRows(_ context.Context, rows []models.TimetableRow) error {
	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		if err != nil {
			return err
		}
	}
	s.appended = append(s.appended, rows)
	s.history = append(s.history, rows...)
	return nil
}

func (s *stubTimetableStore) ListByDepartment(_ context.Context, departmentID string) ([]models.TimetableSummary, error) {
	return s.summaries, nil
}

func (s *stubTimetableStore) ListByTimetable(_ context.Context, timetableID string) ([]models.TimetableRow, error) {
	var rows []models.TimetableRow
	for _, row := range s.history {
		if row.ID == timetableID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *stubTimetableStore) DeleteRows(_ context.Context, rowIDs []string) (int64, error) {
	s.deleted = append(s.deleted, rowIDs...)
	return int64(len(rowIDs)), nil
}

func (s *stubTimetableStore) AssignTimetableID(_ context.Context, rowID, timetableID string) error {
	if s.assigned == nil {
		s.assigned = make(map[string]string)
	}
	s.assigned[rowID] = timetableID
	return nil
}

type stubRoomLister struct {
	rooms []string
}

func (s stubRoomLister) ListByDepartment(context.Context, string) ([]string, error) {
	return s.rooms, nil
}

type stubLocker struct {
	held     bool
	released int
	ttl      time.Duration
}

func (s *stubLocker) Acquire(_ context.Context, _ string, _ string, ttl time.Duration) (bool, error) {
	if s.held {
		return false, nil
	}
	s.held = true
	s.ttl = ttl
	return true, nil
}

func (s *stubLocker) Release(context.Context, string, string) error {
	s.held = false
	s.released++
	return nil
}

type timetableFixtureConfig struct {
	store  *stubTimetableStore
	locker *stubLocker
	lock   bool
}

func newTimetableServiceFixture(t *testing.T, cfg timetableFixtureConfig) *TimetableService {
	t.Helper()
	if cfg.store == nil {
		cfg.store = &stubTimetableStore{}
	}
	var locker sessionLocker
	if cfg.locker != nil {
		locker = cfg.locker
	}
	svc := NewTimetableService(
		cfg.store,
		stubRoomLister{rooms: []string{"R1", "R2"}},
		locker,
		nil,
		NewTimetableGenerator(21, 0, nil),
		NewMetricsService(),
		nil,
		nil,
		TimetableServiceConfig{
			LockEnabled: cfg.lock,
			Retry: retry.Policy{
				Attempts:  3,
				BaseDelay: time.Millisecond,
				Sleep:     func(context.Context, time.Duration) error { return nil },
			},
		},
	)
	return svc
}

func autoRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Requests: []dto.SchedulingRequestPayload{
			{FacultyID: "F1", SubjectID: "S1", ClassesPerWeek: 3, Duration: 1},
			{FacultyID: "F2", SubjectID: "S2", ClassesPerWeek: 2, Duration: 2},
		},
	}
}

func TestTimetableServiceGenerateAuto(t *testing.T) {
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, proposal.ProposalID)
	assert.Equal(t, models.GenerationModeAuto, proposal.Mode)
	assert.Equal(t, 5, proposal.RequestedClasses)
	assert.Len(t, proposal.Slots, proposal.PlacedClasses)
	assert.Empty(t, Sweep(proposal.Slots))
	for _, slot := range proposal.Slots {
		assert.Contains(t, []string{"R1", "R2"}, slot.Room)
	}

	stored, err := svc.Proposal(proposal.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, proposal.Slots, stored.Slots)
}

func TestTimetableServiceGenerateValidatesPayload(t *testing.T) {
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Requests:     []dto.SchedulingRequestPayload{{FacultyID: "F1", SubjectID: "S1", ClassesPerWeek: 1, Duration: 4}},
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Generate(context.Background(), dto.GenerateTimetableRequest{DepartmentID: "D1", Mode: models.GenerationModeManual})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestTimetableServiceGenerateAvoidsHistory(t *testing.T) {
	store := &stubTimetableStore{history: []models.TimetableRow{
		{ID: "old", DepartmentID: "D1", RoomName: "R1", FacultyID: "F1", SubjectID: "S9", StartTime: "Monday 10:00", EndTime: "Monday 13:00", RowID: "row-1"},
		{ID: "old", DepartmentID: "D1", RoomName: "R1", FacultyID: "F1", SubjectID: "S9", StartTime: "Monday 10:30", EndTime: "Monday 11:30", RowID: "row-2"},
	}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	existing := models.NewSlot(models.Monday, 10, 3, "F1", "S9", "R1")
	for _, slot := range proposal.Slots {
		if slot.FacultyID == "F1" || slot.Room == "R1" {
			assert.False(t, slot.Overlaps(existing), "slot %+v overlaps stored class", slot)
		}
	}
}

func TestTimetableServiceManualRefusesConflicts(t *testing.T) {
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Mode:         models.GenerationModeManual,
		ManualSlots: []dto.ManualSlotPayload{
			{Day: "Monday", StartHour: 10, Duration: 1, FacultyID: "F", SubjectID: "S1", Room: "R1"},
			{Day: "Monday", StartHour: 11, Duration: 1, FacultyID: "F", SubjectID: "S2", Room: "R2"},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))

	var conflictErr *models.ConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, []string{"Faculty has no gap between classes: F on Monday at 10:00 and 11:00"}, conflictErr.Conflicts)
}

func TestTimetableServiceManualRejectsIllegalSlot(t *testing.T) {
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Mode:         models.GenerationModeManual,
		ManualSlots: []dto.ManualSlotPayload{
			{Day: "Monday", StartHour: 12, Duration: 2, FacultyID: "F", SubjectID: "S1", Room: "R1"},
		},
	})
	var conflictErr *models.ConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Contains(t, conflictErr.Conflicts[0], ReasonOutOfRange)
}

func TestTimetableServiceManualSaveWritesRows(t *testing.T) {
	store := &stubTimetableStore{}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	proposal, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Mode:         models.GenerationModeManual,
		ManualSlots: []dto.ManualSlotPayload{
			{Day: "Monday", StartHour: 10, Duration: 2, FacultyID: "F1", SubjectID: "S1", Room: "R1"},
			{Day: "Tuesday", StartHour: 14, Duration: 1, FacultyID: "F1", SubjectID: "S2", Room: "R1"},
		},
	})
	require.NoError(t, err)

	saved, err := svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.RowsWritten)
	require.Len(t, store.appended, 1)
	for _, row := range store.appended[0] {
		assert.Equal(t, saved.TimetableID, row.ID)
		assert.Equal(t, "D1", row.DepartmentID)
	}
	assert.Equal(t, "Monday 10:00", store.appended[0][0].StartTime)
	assert.Equal(t, "Monday 12:00", store.appended[0][0].EndTime)

	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestTimetableServiceSaveRefusesStaleProposal(t *testing.T) {
	store := &stubTimetableStore{}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	manual := dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Mode:         models.GenerationModeManual,
		ManualSlots: []dto.ManualSlotPayload{
			{Day: "Wednesday", StartHour: 14, Duration: 2, FacultyID: "F1", SubjectID: "S1", Room: "R1"},
		},
	}
	first, err := svc.Generate(context.Background(), manual)
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), manual)
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: first.ProposalID})
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: second.ProposalID})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
	assert.Len(t, store.appended, 1)
}

func TestTimetableServiceSaveRetriesRateLimits(t *testing.T) {
	limited := appErrors.Clone(appErrors.ErrRateLimited, "quota")
	store := &stubTimetableStore{appendErrs: []error{limited, limited}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)
	assert.Len(t, store.appended, 1)
	assert.EqualValues(t, 2, svc.metrics.Snapshot().PersistenceRetries)
}

func TestTimetableServiceSaveLockOutlivesBackoff(t *testing.T) {
	limited := appErrors.Clone(appErrors.ErrRateLimited, "quota")
	store := &stubTimetableStore{appendErrs: []error{limited, limited}}
	locker := &stubLocker{}
	var slept time.Duration
	svc := NewTimetableService(store, stubRoomLister{rooms: []string{"R1", "R2"}}, locker, nil,
		NewTimetableGenerator(21, 0, nil), NewMetricsService(), nil, nil,
		TimetableServiceConfig{
			LockEnabled: true,
			LockTTL:     30 * time.Second,
			Retry: retry.Policy{
				Attempts:  3,
				BaseDelay: time.Minute,
				Sleep: func(_ context.Context, d time.Duration) error {
					slept += d
					return nil
				},
			},
		})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	readsBeforeSave := store.readCalls
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, slept)
	assert.Greater(t, locker.ttl, slept)
	assert.Equal(t, 3, store.readCalls-readsBeforeSave)
}

func TestTimetableServiceSaveRechecksHistoryBetweenRetries(t *testing.T) {
	limited := appErrors.Clone(appErrors.ErrRateLimited, "quota")
	store := &stubTimetableStore{appendErrs: []error{limited}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	manual := dto.GenerateTimetableRequest{
		DepartmentID: "D1",
		Mode:         models.GenerationModeManual,
		ManualSlots: []dto.ManualSlotPayload{
			{Day: "Thursday", StartHour: 10, Duration: 1, FacultyID: "F1", SubjectID: "S1", Room: "R1"},
		},
	}
	proposal, err := svc.Generate(context.Background(), manual)
	require.NoError(t, err)

	svc.cfg.Retry.Sleep = func(context.Context, time.Duration) error {
		store.history = append(store.history, models.TimetableRow{
			ID: "other", RowID: "row-x", DepartmentID: "D2", RoomName: "R9", FacultyID: "F1", SubjectID: "S7",
			StartTime: "Thursday 10:00", EndTime: "Thursday 11:00",
		})
		return nil
	}
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
	assert.Empty(t, store.appended)
}

func TestTimetableServiceSaveSurfacesExhaustedRateLimit(t *testing.T) {
	limited := appErrors.Clone(appErrors.ErrRateLimited, "quota")
	store := &stubTimetableStore{appendErrs: []error{limited, limited, limited}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrRateLimited.Code))
	assert.Equal(t, 429, appErrors.FromError(err).Status)
	assert.Empty(t, store.appended)
}

func TestTimetableServiceSaveFailsFastOnOtherErrors(t *testing.T) {
	store := &stubTimetableStore{appendErrs: []error{errors.New("connection reset")}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
	assert.Zero(t, svc.metrics.Snapshot().PersistenceRetries)
}

func TestTimetableServiceSaveHonoursLock(t *testing.T) {
	locker := &stubLocker{held: true}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{locker: locker, lock: true})

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrLocked.Code))

	locker.held = false
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
	assert.False(t, locker.held)
}

func TestTimetableServiceGenerateWithCommit(t *testing.T) {
	store := &stubTimetableStore{}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	req := autoRequest()
	req.Commit = true
	proposal, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, proposal.TimetableID)
	assert.NotNil(t, proposal.SavedAt)
	require.Len(t, store.appended, 1)
	assert.Len(t, store.appended[0], proposal.PlacedClasses)
}

func TestTimetableServiceProposalExpires(t *testing.T) {
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{})
	current := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }
	svc.proposals.now = svc.now

	proposal, err := svc.Generate(context.Background(), autoRequest())
	require.NoError(t, err)

	current = current.Add(31 * time.Minute)
	_, err = svc.Proposal(proposal.ProposalID)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestTimetableServiceCleanHistory(t *testing.T) {
	store := &stubTimetableStore{history: []models.TimetableRow{
		{ID: "tt-1", DepartmentID: "D1", FacultyID: "F1", SubjectID: "S1", StartTime: "Monday 10:00", EndTime: "Monday 11:00", RowID: "row-1"},
		{DepartmentID: "D1", FacultyID: "F1", SubjectID: "S2", StartTime: "Tuesday 10:00", EndTime: "Tuesday 11:00", RowID: "row-2"},
		{ID: "tt-1", DepartmentID: "D1", FacultyID: "F1", SubjectID: "S3", StartTime: "Monday 16:00", EndTime: "Monday 19:00", RowID: "row-3"},
		{ID: "tt-1", DepartmentID: "D1", FacultyID: "F1", StartTime: "Monday 10:00", EndTime: "Monday 11:00", RowID: "row-4"},
	}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})
	svc.rows.newID = func() string { return "generated" }

	result, err := svc.CleanHistory(context.Background(), dto.CleanTimetablesQuery{AssignMissingIDs: true})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Checked)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, 1, result.AssignedIDs)
	assert.Equal(t, 1, result.MissingFields)
	assert.ElementsMatch(t, []string{"row-3", "row-4"}, store.deleted)
	assert.Equal(t, map[string]string{"row-2": "generated"}, store.assigned)

	require.Len(t, result.Invalid, 2)
	assert.Equal(t, ReasonOutOfRange, result.Invalid[0].Reason)
	assert.Empty(t, result.Invalid[1].Reason)
}

func TestTimetableServiceFacultySchedule(t *testing.T) {
	store := &stubTimetableStore{history: []models.TimetableRow{
		{ID: "tt-1", DepartmentID: "D1", RoomName: "R2", FacultyID: "F1", SubjectID: "S2", StartTime: "Wednesday 14:00", EndTime: "Wednesday 16:00"},
		{ID: "tt-1", DepartmentID: "D1", RoomName: "R1", FacultyID: "F1", SubjectID: "S1", StartTime: "Monday 11:00", EndTime: "Monday 12:00"},
		{ID: "tt-2", DepartmentID: "D2", RoomName: "R1", FacultyID: "F1", SubjectID: "S3", StartTime: "Monday 10:00", EndTime: "Monday 10:00"},
		{ID: "tt-1", DepartmentID: "D1", RoomName: "R1", FacultyID: "F2", SubjectID: "S4", StartTime: "Monday 10:00", EndTime: "Monday 11:00"},
	}}
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{store: store})

	view, err := svc.FacultySchedule(context.Background(), "F1")
	require.NoError(t, err)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "S1", view.Entries[0].SubjectID)
	assert.Equal(t, "S2", view.Entries[1].SubjectID)
	assert.Equal(t, 3, view.TeachingHours)
	assert.Equal(t, 1, view.SkippedInvalid)
	assert.Equal(t, 1, view.ClassesPerDay[models.Wednesday])
}

func TestTimetableServiceTimetableRowsNotFound(t *testing.T) {
	svc := newTimetableServiceFixture(t, timetableFixtureConfig{})
	_, err := svc.TimetableRows(context.Background(), "missing")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestTimetableServiceWithoutStorage(t *testing.T) {
	svc := NewTimetableService(nil, nil, nil, nil, nil, nil, nil, nil, TimetableServiceConfig{})
	_, err := svc.Generate(context.Background(), autoRequest())
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnavailable.Code))
}
