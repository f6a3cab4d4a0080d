package service

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable/internal/models"
)

const defaultMaxAttemptsPerClass = 20

// GenerationOptions tunes one assignment session.
type GenerationOptions struct {
	AvoidFridayAfternoon bool
	MaxAttemptsPerClass  int
}

// GenerationResult is the outcome of one session. Slots may be partial.
type GenerationResult struct {
	Slots            []models.Slot              `json:"slots"`
	Warnings         []string                   `json:"warnings"`
	Failures         []models.GenerationFailure `json:"failures"`
	RequestedClasses int                        `json:"requestedClasses"`
	PlacedClasses    int                        `json:"placedClasses"`
}

// TimetableGenerator places scheduling requests onto the weekly grid using a
// randomized greedy search with bounded retries.
type TimetableGenerator struct {
	newRand     func() *rand.Rand
	maxAttempts int
	logger      *zap.Logger
}

// NewTimetableGenerator builds a generator. A zero seed draws a fresh seed per
// session; any other value makes every session replay the same sequence.
func NewTimetableGenerator(seed int64, maxAttempts int, logger *zap.Logger) *TimetableGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttemptsPerClass
	}
	newRand := func() *rand.Rand {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if seed != 0 {
		newRand = func() *rand.Rand {
			return rand.New(rand.NewSource(seed))
		}
	}
	return &TimetableGenerator{newRand: newRand, maxAttempts: maxAttempts, logger: logger}
}

// Assign runs one generation session. history is treated as a consistent
// snapshot and never re-read.
func (g *TimetableGenerator) Assign(requests []models.SchedulingRequest, rooms []string, history []models.Slot, opts GenerationOptions) GenerationResult {
	if opts.MaxAttemptsPerClass <= 0 {
		opts.MaxAttemptsPerClass = g.maxAttempts
	}
	session := newGenerationSession(g.newRand(), opts, rooms, history)

	session.checkCapacity(requests)
	for _, req := range requests {
		session.scheduleRequest(req)
	}

	for _, warning := range session.warnings {
		g.logger.Warn("timetable generation warning", zap.String("warning", warning))
	}
	return GenerationResult{
		Slots:            session.schedule,
		Warnings:         session.warnings,
		Failures:         session.failures,
		RequestedClasses: session.requested,
		PlacedClasses:    len(session.schedule),
	}
}

// occupancyKey marks one covered hour of a room or faculty member.
type occupancyKey struct {
	Day  models.Day
	Hour int
	ID   string
}

type generationSession struct {
	rng     *rand.Rand
	opts    GenerationOptions
	rooms   []string
	history []models.Slot

	schedule    []models.Slot
	roomBusy    map[occupancyKey]bool
	facultyBusy map[occupancyKey]bool
	roomUsage   map[string]int
	dayLoad     map[string]map[models.Day]int

	requested int
	warnings  []string
	failures  []models.GenerationFailure
}

func newGenerationSession(rng *rand.Rand, opts GenerationOptions, rooms []string, history []models.Slot) *generationSession {
	unique := make([]string, 0, len(rooms))
	usage := make(map[string]int, len(rooms))
	for _, room := range rooms {
		if room == "" {
			continue
		}
		if _, seen := usage[room]; seen {
			continue
		}
		usage[room] = 0
		unique = append(unique, room)
	}
	return &generationSession{
		rng:         rng,
		opts:        opts,
		rooms:       unique,
		history:     history,
		roomBusy:    make(map[occupancyKey]bool),
		facultyBusy: make(map[occupancyKey]bool),
		roomUsage:   usage,
		dayLoad:     make(map[string]map[models.Day]int),
	}
}

func (s *generationSession) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *generationSession) checkCapacity(requests []models.SchedulingRequest) {
	roomSet := make(map[string]struct{}, len(s.rooms))
	for _, room := range s.rooms {
		roomSet[room] = struct{}{}
	}
	classHours := 0
	for _, req := range requests {
		if req.ClassesPerWeek > 0 && req.Duration > 0 {
			classHours += req.ClassesPerWeek * req.Duration
		}
		if req.Room != "" {
			roomSet[req.Room] = struct{}{}
		}
	}
	capacity := len(models.Days) * len(models.TimeSlots) * len(roomSet)
	if classHours > capacity {
		s.warn("Insufficient time slots or rooms for all classes: %d class-hours requested, capacity is %d. Consider adding more rooms or reducing classes.", classHours, capacity)
	}
}

func (s *generationSession) scheduleRequest(req models.SchedulingRequest) {
	if req.ClassesPerWeek > 0 {
		s.requested += req.ClassesPerWeek
	}
	if req.ClassesPerWeek < 1 || req.Duration < models.MinDuration || req.Duration > models.MaxDuration {
		reason := fmt.Sprintf("invalid request: %d classes of %d hours", req.ClassesPerWeek, req.Duration)
		s.failures = append(s.failures, models.GenerationFailure{
			FacultyID: req.FacultyID,
			SubjectID: req.SubjectID,
			Requested: req.ClassesPerWeek,
			Reasons:   []string{reason},
		})
		s.warn("Skipped request for %s (Faculty: %s): %s", req.SubjectID, req.FacultyID, reason)
		return
	}

	reasons := newReasonSet()
	days := s.selectDays(req)
	scheduled := 0
	for idx := 0; idx < req.ClassesPerWeek; idx++ {
		day := days[idx]
		placed := false
		for attempt := 0; attempt < s.opts.MaxAttemptsPerClass; attempt++ {
			if s.tryDay(req, day, reasons) {
				placed = true
				break
			}
			day = s.leastLoadedDay(req.FacultyID)
		}
		if !placed {
			reasons.add(fmt.Sprintf("Failed to assign class %d for %s after %d attempts", idx+1, req.SubjectID, s.opts.MaxAttemptsPerClass))
			continue
		}
		scheduled++
	}

	if scheduled < req.ClassesPerWeek {
		list := reasons.list()
		s.failures = append(s.failures, models.GenerationFailure{
			FacultyID: req.FacultyID,
			SubjectID: req.SubjectID,
			Requested: req.ClassesPerWeek,
			Scheduled: scheduled,
			Reasons:   list,
		})
		s.warn("Could not schedule %d classes for %s (Faculty: %s). Reasons: %v", req.ClassesPerWeek-scheduled, req.SubjectID, req.FacultyID, list)
	}
}

// selectDays samples one day per class without replacement, padding with
// replacement once every day is used.
func (s *generationSession) selectDays(req models.SchedulingRequest) []models.Day {
	order := s.rng.Perm(len(models.Days))
	days := make([]models.Day, 0, req.ClassesPerWeek)
	for _, idx := range order {
		if len(days) == req.ClassesPerWeek {
			break
		}
		days = append(days, models.Days[idx])
	}
	if req.ClassesPerWeek > len(models.Days) {
		s.warn("Not enough days to distribute %d classes for %s. Some days may be reused.", req.ClassesPerWeek, req.SubjectID)
		for len(days) < req.ClassesPerWeek {
			days = append(days, models.Days[s.rng.Intn(len(models.Days))])
		}
	}
	return days
}

// leastLoadedDay picks randomly among the days where the faculty has the fewest classes.
func (s *generationSession) leastLoadedDay(facultyID string) models.Day {
	load := s.dayLoad[facultyID]
	best := -1
	var candidates []models.Day
	for _, day := range models.Days {
		count := load[day]
		switch {
		case best < 0 || count < best:
			best = count
			candidates = []models.Day{day}
		case count == best:
			candidates = append(candidates, day)
		}
	}
	return candidates[s.rng.Intn(len(candidates))]
}

func (s *generationSession) tryDay(req models.SchedulingRequest, day models.Day, reasons *reasonSet) bool {
	hours := make([]int, len(models.TimeSlots))
	for i, idx := range s.rng.Perm(len(models.TimeSlots)) {
		hours[i] = models.TimeSlots[idx]
	}

	for _, hour := range hours {
		if !models.IntervalLegal(hour, req.Duration) {
			reasons.add(fmt.Sprintf("Time %02d:00 on %s exceeds 18:00 or crosses lunch", hour, day))
			continue
		}
		if s.opts.AvoidFridayAfternoon && models.IsFridayAfternoon(day, hour) {
			reasons.add(fmt.Sprintf("Time %02d:00 on %s falls on an avoided Friday afternoon", hour, day))
			continue
		}
		if s.busy(s.facultyBusy, req.FacultyID, day, hour, req.Duration) {
			reasons.add(fmt.Sprintf("Faculty %s already scheduled at %02d:00 on %s in this timetable", req.FacultyID, hour, day))
			continue
		}
		candidate := models.NewSlot(day, hour, req.Duration, req.FacultyID, req.SubjectID, "")
		if reason, conflict := DetectFacultyOverlap(candidate, s.history); conflict {
			reasons.add(reason)
			continue
		}
		if reason, conflict := DetectGap(candidate, s.schedule); conflict {
			reasons.add(reason)
			continue
		}
		room, reason := s.pickRoom(req, candidate)
		if room == "" {
			reasons.add(reason)
			continue
		}
		candidate.Room = room
		s.commit(candidate)
		return true
	}
	return false
}

func (s *generationSession) pickRoom(req models.SchedulingRequest, candidate models.Slot) (string, string) {
	if req.Room != "" {
		if s.roomAvailable(req.Room, candidate) {
			return req.Room, ""
		}
		return "", fmt.Sprintf("Room %s booked at %02d:00 on %s", req.Room, candidate.StartHour, candidate.Day)
	}

	ordered := make([]string, len(s.rooms))
	copy(ordered, s.rooms)
	sort.SliceStable(ordered, func(i, j int) bool {
		return s.roomUsage[ordered[i]] < s.roomUsage[ordered[j]]
	})
	for _, room := range ordered {
		if s.roomAvailable(room, candidate) {
			return room, ""
		}
	}
	return "", fmt.Sprintf("No available rooms at %02d:00 on %s", candidate.StartHour, candidate.Day)
}

func (s *generationSession) roomAvailable(room string, candidate models.Slot) bool {
	if s.busy(s.roomBusy, room, candidate.Day, candidate.StartHour, candidate.Duration) {
		return false
	}
	candidate.Room = room
	_, conflict := DetectRoomOverlap(candidate, s.history)
	return !conflict
}

func (s *generationSession) busy(set map[occupancyKey]bool, id string, day models.Day, start, duration int) bool {
	for hour := start; hour < start+duration; hour++ {
		if set[occupancyKey{Day: day, Hour: hour, ID: id}] {
			return true
		}
	}
	return false
}

func (s *generationSession) commit(slot models.Slot) {
	s.schedule = append(s.schedule, slot)
	for hour := slot.StartHour; hour < slot.EndHour; hour++ {
		s.roomBusy[occupancyKey{Day: slot.Day, Hour: hour, ID: slot.Room}] = true
		s.facultyBusy[occupancyKey{Day: slot.Day, Hour: hour, ID: slot.FacultyID}] = true
	}
	s.roomUsage[slot.Room] += slot.Duration
	if s.dayLoad[slot.FacultyID] == nil {
		s.dayLoad[slot.FacultyID] = make(map[models.Day]int, len(models.Days))
	}
	s.dayLoad[slot.FacultyID][slot.Day]++
}

// reasonSet keeps distinct failure reasons in first-seen order.
type reasonSet struct {
	seen  map[string]struct{}
	items []string
}

func newReasonSet() *reasonSet {
	return &reasonSet{seen: make(map[string]struct{})}
}

func (r *reasonSet) add(reason string) {
	if _, ok := r.seen[reason]; ok {
		return
	}
	r.seen[reason] = struct{}{}
	r.items = append(r.items, reason)
}

func (r *reasonSet) list() []string {
	if len(r.items) == 0 {
		return []string{"Unknown constraints"}
	}
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}
