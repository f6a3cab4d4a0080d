package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable/internal/dto"
	"github.com/noah-isme/campus-timetable/internal/models"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
	"github.com/noah-isme/campus-timetable/pkg/retry"
)

type timetableStore interface {
	ReadHistory(ctx context.Context, facultyID string) ([]models.TimetableRow, error)
	AppendRows(ctx context.Context, rows []models.TimetableRow) error
	ListByDepartment(ctx context.Context, departmentID string) ([]models.TimetableSummary, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableRow, error)
	DeleteRows(ctx context.Context, rowIDs []string) (int64, error)
	AssignTimetableID(ctx context.Context, rowID, timetableID string) error
}

type roomLister interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]string, error)
}

type sessionLocker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// TimetableServiceConfig governs proposal lifetime, engine defaults and storage behaviour.
type TimetableServiceConfig struct {
	ProposalTTL          time.Duration
	AvoidFridayAfternoon bool
	Retry                retry.Policy
	LockEnabled          bool
	LockTTL              time.Duration
}

// TimetableService drives generation sessions and owns their persistence.
type TimetableService struct {
	store     timetableStore
	rooms     roomLister
	locks     sessionLocker
	cache     *CacheService
	generator *TimetableGenerator
	rows      *RowValidator
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TimetableServiceConfig
	proposals *proposalStore
	now       func() time.Time
	newID     func() string
}

// NewTimetableService wires the timetable pipeline. Nil collaborators other
// than store are tolerated and simply switch their feature off.
func NewTimetableService(
	store timetableStore,
	rooms roomLister,
	locks sessionLocker,
	cache *CacheService,
	generator *TimetableGenerator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = NewTimetableGenerator(0, 0, logger)
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	now := func() time.Time { return time.Now().UTC() }
	return &TimetableService{
		store:     store,
		rooms:     rooms,
		locks:     locks,
		cache:     cache,
		generator: generator,
		rows:      NewRowValidator(logger),
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		proposals: newProposalStore(cfg.ProposalTTL, now),
		now:       now,
		newID:     uuid.NewString,
	}
}

// Generate runs one session and stores its result as a proposal. Manual
// sessions with any violation are refused with a ConflictError.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*models.TimetableProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	mode := req.Mode
	if mode == "" {
		mode = models.GenerationModeAuto
	}
	if mode == models.GenerationModeManual && len(req.ManualSlots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "manual mode requires at least one slot")
	}

	historyRows, err := s.history(ctx, "", false)
	if err != nil {
		return nil, err
	}
	history := s.validHistory(historyRows)

	started := time.Now()
	var proposal *models.TimetableProposal
	if mode == models.GenerationModeManual {
		proposal, err = s.manualProposal(req, history)
	} else {
		proposal, err = s.autoProposal(ctx, req, history)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveGeneration(mode, proposal.PlacedClasses, proposal.RequestedClasses-proposal.PlacedClasses, time.Since(started))

	proposal.ProposalID = s.newID()
	proposal.DepartmentID = req.DepartmentID
	proposal.Mode = mode
	proposal.CreatedAt = s.now()
	proposal.ExpiresAt = proposal.CreatedAt.Add(s.cfg.ProposalTTL)
	s.proposals.Save(*proposal)

	s.logger.Sugar().Infow("timetable proposal generated",
		"proposal_id", proposal.ProposalID,
		"department_id", proposal.DepartmentID,
		"mode", mode,
		"placed", proposal.PlacedClasses,
		"requested", proposal.RequestedClasses,
		"warnings", len(proposal.Warnings),
	)

	if req.Commit {
		saved, err := s.Save(ctx, dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
		if err != nil {
			return proposal, err
		}
		savedAt := s.now()
		proposal.TimetableID = saved.TimetableID
		proposal.SavedAt = &savedAt
	}
	return proposal, nil
}

func (s *TimetableService) autoProposal(ctx context.Context, req dto.GenerateTimetableRequest, history []models.Slot) (*models.TimetableProposal, error) {
	rooms := req.Rooms
	if len(rooms) == 0 && s.rooms != nil {
		var listed []string
		err := s.withRetry(ctx, "list_rooms", func(ctx context.Context) error {
			var err error
			listed, err = s.rooms.ListByDepartment(ctx, req.DepartmentID)
			return err
		})
		if err != nil {
			return nil, storageError(err, "failed to load department rooms")
		}
		rooms = listed
	}

	requests := make([]models.SchedulingRequest, 0, len(req.Requests))
	for _, item := range req.Requests {
		requests = append(requests, models.SchedulingRequest{
			FacultyID:      item.FacultyID,
			FacultyName:    item.FacultyName,
			SubjectID:      item.SubjectID,
			SubjectName:    item.SubjectName,
			ClassesPerWeek: item.ClassesPerWeek,
			Duration:       item.Duration,
			Room:           item.Room,
		})
	}

	opts := GenerationOptions{AvoidFridayAfternoon: s.cfg.AvoidFridayAfternoon}
	if req.AvoidFridayAfternoon != nil {
		opts.AvoidFridayAfternoon = *req.AvoidFridayAfternoon
	}
	result := s.generator.Assign(requests, rooms, history, opts)

	warnings := result.Warnings
	if result.PlacedClasses < result.RequestedClasses {
		warnings = append(warnings, fmt.Sprintf("Scheduled %d/%d classes", result.PlacedClasses, result.RequestedClasses))
	}
	return &models.TimetableProposal{
		Slots:            nonNilSlots(result.Slots),
		Warnings:         nonNilStrings(warnings),
		Failures:         result.Failures,
		Conflicts:        []string{},
		RequestedClasses: result.RequestedClasses,
		PlacedClasses:    result.PlacedClasses,
	}, nil
}

func (s *TimetableService) manualProposal(req dto.GenerateTimetableRequest, history []models.Slot) (*models.TimetableProposal, error) {
	slots := make([]models.Slot, 0, len(req.ManualSlots))
	var conflicts []string
	for _, item := range req.ManualSlots {
		day, _ := models.ParseDay(item.Day)
		slot := models.NewSlot(day, item.StartHour, item.Duration, item.FacultyID, item.SubjectID, item.Room)
		if ok, reason := s.rows.ValidateSlot(slot, req.DepartmentID); !ok {
			conflicts = append(conflicts, fmt.Sprintf("Invalid slot for %s at %s: %s", slot.SubjectID, slot.StartTime(), reason))
		}
		if reason, conflict := DetectFacultyOverlap(slot, history); conflict {
			conflicts = append(conflicts, reason)
		}
		if reason, conflict := DetectRoomOverlap(slot, history); conflict {
			conflicts = append(conflicts, reason)
		}
		slots = append(slots, slot)
	}
	conflicts = append(conflicts, Sweep(slots)...)

	if len(conflicts) > 0 {
		s.metrics.ObserveGeneration(models.GenerationModeManual, 0, len(slots), 0)
		return nil, appErrors.Wrap(&models.ConflictError{Message: "manual schedule has conflicts", Conflicts: conflicts},
			appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("manual schedule refused: %d conflicts", len(conflicts)))
	}
	return &models.TimetableProposal{
		Slots:            slots,
		Warnings:         []string{},
		Conflicts:        []string{},
		RequestedClasses: len(slots),
		PlacedClasses:    len(slots),
	}, nil
}

// Save writes a proposal to storage under a fresh timetable id. History is
// re-read before each write attempt so a proposal made stale by a concurrent
// save is refused.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "timetable storage is not configured")
	}
	proposal, ok := s.proposals.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if len(proposal.Conflicts) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal contains unresolved conflicts")
	}
	if len(proposal.Slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal has no slots to save")
	}

	release, err := s.lock(ctx, proposal.DepartmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	timetableID := s.newID()
	createdAt := s.now()
	rows := make([]models.TimetableRow, 0, len(proposal.Slots))
	for _, slot := range proposal.Slots {
		row := models.RowFromSlot(slot, timetableID, proposal.DepartmentID, createdAt)
		if ok, reason := s.rows.Validate(&row, false); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("refusing to write row %s to %s: %s", row.StartTime, row.EndTime, reason))
		}
		rows = append(rows, row)
	}

	// History is re-checked before every attempt; another session may have
	// written while this one was backing off.
	if err := s.withRetry(ctx, "append_rows", func(ctx context.Context) error {
		if err := s.ensureFresh(ctx, proposal.Slots); err != nil {
			return err
		}
		return s.store.AppendRows(ctx, rows)
	}); err != nil {
		s.logger.Error("failed to save timetable", zap.String("proposal_id", proposal.ProposalID), zap.Error(err))
		return nil, storageError(err, "failed to save timetable")
	}

	s.cache.InvalidateHistory(ctx)
	s.proposals.Delete(proposal.ProposalID)
	s.logger.Sugar().Infow("timetable saved", "timetable_id", timetableID, "department_id", proposal.DepartmentID, "rows", len(rows))
	return &dto.SaveTimetableResponse{TimetableID: timetableID, RowsWritten: len(rows)}, nil
}

// Proposal returns a stored proposal that has not expired.
func (s *TimetableService) Proposal(id string) (*models.TimetableProposal, error) {
	proposal, ok := s.proposals.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &proposal, nil
}

// ListTimetables returns previous timetables grouped by timetable and department.
func (s *TimetableService) ListTimetables(ctx context.Context, query dto.TimetableListQuery) ([]models.TimetableSummary, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "timetable storage is not configured")
	}
	var summaries []models.TimetableSummary
	err := s.withRetry(ctx, "list_timetables", func(ctx context.Context) error {
		var err error
		summaries, err = s.store.ListByDepartment(ctx, query.DepartmentID)
		return err
	})
	if err != nil {
		return nil, storageError(err, "failed to list timetables")
	}
	if summaries == nil {
		summaries = []models.TimetableSummary{}
	}
	return summaries, nil
}

// TimetableRows returns the stored rows of one timetable.
func (s *TimetableService) TimetableRows(ctx context.Context, timetableID string) ([]models.TimetableRow, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "timetable storage is not configured")
	}
	var rows []models.TimetableRow
	err := s.withRetry(ctx, "list_timetable_rows", func(ctx context.Context) error {
		var err error
		rows, err = s.store.ListByTimetable(ctx, timetableID)
		return err
	})
	if err != nil {
		return nil, storageError(err, "failed to load timetable")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	return rows, nil
}

// FacultySchedule lists every stored class of one faculty in weekly order.
func (s *TimetableService) FacultySchedule(ctx context.Context, facultyID string) (*dto.FacultyScheduleResponse, error) {
	if facultyID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "facultyId is required")
	}
	rows, err := s.history(ctx, facultyID, false)
	if err != nil {
		return nil, err
	}

	resp := &dto.FacultyScheduleResponse{
		FacultyID:     facultyID,
		Entries:       []dto.FacultyScheduleEntry{},
		ClassesPerDay: make(map[models.Day]int, len(models.Days)),
	}
	type entry struct {
		slot models.Slot
		row  models.TimetableRow
	}
	var entries []entry
	for _, row := range rows {
		row := row
		if ok, _ := s.rows.Validate(&row, false); !ok {
			resp.SkippedInvalid++
			continue
		}
		slot, _ := row.Slot()
		entries = append(entries, entry{slot: slot, row: row})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].slot, entries[j].slot
		if a.Day != b.Day {
			return a.Day.Index() < b.Day.Index()
		}
		return a.StartHour < b.StartHour
	})
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.FacultyScheduleEntry{
			TimetableID:  e.row.ID,
			DepartmentID: e.row.DepartmentID,
			Day:          e.slot.Day,
			StartTime:    e.row.StartTime,
			EndTime:      e.row.EndTime,
			SubjectID:    e.row.SubjectID,
			Room:         e.row.RoomName,
		})
		resp.TeachingHours += e.slot.Duration
		resp.ClassesPerDay[e.slot.Day]++
	}
	return resp, nil
}

// CleanHistory validates every stored row, removes the invalid ones and
// optionally assigns ids to valid rows that have none.
func (s *TimetableService) CleanHistory(ctx context.Context, query dto.CleanTimetablesQuery) (*dto.CleanTimetablesResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clean parameters")
	}
	rows, err := s.history(ctx, "", true)
	if err != nil {
		return nil, err
	}

	result := &dto.CleanTimetablesResult{Checked: len(rows), Invalid: []dto.InvalidTimetableRow{}}
	var invalidIDs []string
	for i := range rows {
		row := rows[i]
		hadID := row.ID != ""
		ok, reason := s.rows.Validate(&row, query.AssignMissingIDs)
		if !ok {
			invalid := dto.InvalidTimetableRow{Row: rows[i], Reason: reason}
			if reason == ReasonMissingFields {
				result.MissingFields++
				invalid.Reason = ""
			}
			result.Invalid = append(result.Invalid, invalid)
			invalidIDs = append(invalidIDs, row.RowID)
			continue
		}
		if !hadID && row.ID != "" {
			if err := s.withRetry(ctx, "assign_timetable_id", func(ctx context.Context) error {
				return s.store.AssignTimetableID(ctx, row.RowID, row.ID)
			}); err != nil {
				return nil, storageError(err, "failed to assign timetable id")
			}
			result.AssignedIDs++
		}
	}

	if len(invalidIDs) > 0 {
		var removed int64
		err := s.withRetry(ctx, "delete_rows", func(ctx context.Context) error {
			var err error
			removed, err = s.store.DeleteRows(ctx, invalidIDs)
			return err
		})
		if err != nil {
			return nil, storageError(err, "failed to remove invalid rows")
		}
		result.Removed = int(removed)
	}
	if result.Removed > 0 || result.AssignedIDs > 0 {
		s.cache.InvalidateHistory(ctx)
	}

	s.logger.Sugar().Infow("timetable history cleaned",
		"checked", result.Checked,
		"removed", result.Removed,
		"assigned_ids", result.AssignedIDs,
		"missing_fields", result.MissingFields,
	)
	return result, nil
}

// history reads persisted rows through the cache unless fresh is set.
func (s *TimetableService) history(ctx context.Context, facultyID string, fresh bool) ([]models.TimetableRow, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "timetable storage is not configured")
	}
	if !fresh {
		if rows, ok := s.cache.History(ctx, facultyID); ok {
			return rows, nil
		}
	}
	var rows []models.TimetableRow
	err := s.withRetry(ctx, "read_history", func(ctx context.Context) error {
		var err error
		rows, err = s.store.ReadHistory(ctx, facultyID)
		return err
	})
	if err != nil {
		s.logger.Error("failed to read timetable history", zap.String("faculty_id", facultyID), zap.Error(err))
		return nil, storageError(err, "failed to read timetable history")
	}
	s.cache.StoreHistory(ctx, facultyID, rows)
	return rows, nil
}

func (s *TimetableService) validHistory(rows []models.TimetableRow) []models.Slot {
	slots := make([]models.Slot, 0, len(rows))
	skipped := 0
	for i := range rows {
		row := rows[i]
		if ok, _ := s.rows.Validate(&row, false); !ok {
			skipped++
			continue
		}
		if slot, ok := row.Slot(); ok {
			slots = append(slots, slot)
		}
	}
	if skipped > 0 {
		s.logger.Sugar().Warnw("skipped invalid history rows", "count", skipped)
	}
	return slots
}

// ensureFresh refuses slots that now collide with stored timetables.
func (s *TimetableService) ensureFresh(ctx context.Context, slots []models.Slot) error {
	rows, err := s.store.ReadHistory(ctx, "")
	if err != nil {
		return err
	}
	history := s.validHistory(rows)
	var stale []string
	for _, slot := range slots {
		if reason, conflict := DetectFacultyOverlap(slot, history); conflict {
			stale = append(stale, reason)
		}
		if reason, conflict := DetectRoomOverlap(slot, history); conflict {
			stale = append(stale, reason)
		}
	}
	if len(stale) > 0 {
		return appErrors.Wrap(&models.ConflictError{Message: "proposal conflicts with stored timetables", Conflicts: stale},
			appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "proposal is stale: stored timetables changed since it was generated")
	}
	return nil
}

// lockTTL keeps the lock alive through the worst-case retry backoff.
func (s *TimetableService) lockTTL() time.Duration {
	return s.cfg.LockTTL + s.cfg.Retry.Budget()
}

func (s *TimetableService) lock(ctx context.Context, departmentID string) (func(), error) {
	noop := func() {}
	if !s.cfg.LockEnabled || s.locks == nil {
		return noop, nil
	}
	key := "timetable-lock:" + departmentID
	token := s.newID()
	ok, err := s.locks.Acquire(ctx, key, token, s.lockTTL())
	if err != nil {
		return noop, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire session lock")
	}
	if !ok {
		return noop, appErrors.Clone(appErrors.ErrLocked, "another session is saving a timetable for this department")
	}
	return func() {
		if err := s.locks.Release(context.Background(), key, token); err != nil {
			s.logger.Warn("failed to release session lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *TimetableService) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := s.cfg.Retry
	if policy.Logger == nil {
		policy.Logger = s.logger
	}
	policy.OnRetry = func(int, error) { s.metrics.RecordPersistenceRetry(op) }
	started := time.Now()
	err := retry.Do(ctx, policy, isRateLimited, fn)
	s.metrics.ObserveDBQuery(op, time.Since(started))
	return err
}

func isRateLimited(err error) bool {
	return appErrors.IsCode(err, appErrors.ErrRateLimited.Code)
}

func storageError(err error, message string) error {
	if isRateLimited(err) {
		return appErrors.Wrap(err, appErrors.ErrRateLimited.Code, appErrors.ErrRateLimited.Status, message+": storage quota exceeded, try again later")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func nonNilSlots(slots []models.Slot) []models.Slot {
	if slots == nil {
		return []models.Slot{}
	}
	return slots
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]models.TimetableProposal
}

func newProposalStore(ttl time.Duration, now func() time.Time) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]models.TimetableProposal),
	}
}

// Save stores the proposal and drops expired ones.
func (s *proposalStore) Save(proposal models.TimetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, item := range s.items {
		if now.Sub(item.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (models.TimetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.TimetableProposal{}, false
	}
	if s.now().Sub(proposal.CreatedAt) > s.ttl {
		s.Delete(id)
		return models.TimetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
