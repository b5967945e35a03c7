package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stundenplan/grundschule-api/internal/models"
	"github.com/stundenplan/grundschule-api/pkg/config"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	ListAll(ctx context.Context) ([]models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListDetailsByClass(ctx context.Context, classID string) ([]models.ScheduleDetail, error)
	ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error)
	ListDetailsByRoom(ctx context.Context, room string) ([]models.ScheduleDetail, error)
	ListByTimeSlot(ctx context.Context, timeslotID string) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
	FindConflicting(ctx context.Context, candidate *models.Schedule) ([]models.Schedule, error)
}

type scheduleSlotLookup interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

type scheduleAvailabilityLookup interface {
	CheckTeacherAvailability(ctx context.Context, teacherID string, weekday, period int, date time.Time) (models.AvailabilityType, error)
}

// CreateScheduleRequest represents payload for placing a single lesson.
type CreateScheduleRequest struct {
	ClassID    string  `json:"class_id" validate:"required,uuid"`
	TeacherID  string  `json:"teacher_id" validate:"required,uuid"`
	SubjectID  string  `json:"subject_id" validate:"required,uuid"`
	TimeSlotID string  `json:"timeslot_id" validate:"required,uuid"`
	Room       *string `json:"room" validate:"omitempty,max=50"`
	WeekType   string  `json:"week_type" validate:"omitempty,oneof=ALL A B"`
}

// ScheduleService manages manual lesson placement and the week board views.
type ScheduleService struct {
	repo         scheduleRepository
	slots        scheduleSlotLookup
	availability scheduleAvailabilityLookup
	redis        *redis.Client
	boardCfg     config.BoardCacheConfig
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleService constructs a ScheduleService. The redis client may be
// nil; board caching is then skipped entirely.
func NewScheduleService(repo scheduleRepository, slots scheduleSlotLookup, availability scheduleAvailabilityLookup, redisClient *redis.Client, boardCfg config.BoardCacheConfig, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:         repo,
		slots:        slots,
		availability: availability,
		redis:        redisClient,
		boardCfg:     boardCfg,
		validator:    validate,
		logger:       logger,
	}
}

// List returns schedules plus pagination data.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// Create places a lesson after validating it against break slots, teacher
// availability and the three booking dimensions.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	schedule, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	if err := s.validateCandidate(ctx, schedule); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	s.invalidateBoards(ctx, schedule)
	return schedule, nil
}

// Update moves or reassigns an existing lesson with the same validation as
// Create.
func (s *ScheduleService) Update(ctx context.Context, id string, req CreateScheduleRequest) (*models.Schedule, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	candidate, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt

	if err := s.validateCandidate(ctx, candidate); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	s.invalidateBoards(ctx, existing)
	s.invalidateBoards(ctx, candidate)
	return candidate, nil
}

// Delete removes a lesson.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.invalidateBoards(ctx, schedule)
	return nil
}

// Validate dry-runs the placement checks without writing anything. It returns
// the conflicts found, which is empty for a valid placement.
func (s *ScheduleService) Validate(ctx context.Context, req CreateScheduleRequest) ([]models.ScheduleConflict, error) {
	candidate, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	if err := s.validateCandidate(ctx, candidate); err != nil {
		if conflictErr, ok := err.(*models.ScheduleConflictError); ok {
			return conflictErr.Errors, nil
		}
		return nil, err
	}
	return []models.ScheduleConflict{}, nil
}

// AllConflicts sweeps the whole schedule table and reports every pairwise
// double booking. Committed data should normally produce none.
func (s *ScheduleService) AllConflicts(ctx context.Context) ([]models.ScheduleConflict, error) {
	schedules, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	bySlot := make(map[string][]models.Schedule)
	for _, schedule := range schedules {
		bySlot[schedule.TimeSlotID] = append(bySlot[schedule.TimeSlotID], schedule)
	}

	var conflicts []models.ScheduleConflict
	for _, group := range bySlot {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if !a.WeekType.Overlaps(b.WeekType) {
					continue
				}
				if dim := bookingOverlap(a, b); dim != "" {
					conflicts = append(conflicts, conflictFrom(b, dim))
				}
			}
		}
	}
	return conflicts, nil
}

// ClassWeek returns the board for a class, cached when a redis client is set.
// The bool reports whether the board came out of the cache.
func (s *ScheduleService) ClassWeek(ctx context.Context, classID string) ([]models.ScheduleDetail, bool, error) {
	return s.cachedBoard(ctx, boardKey("class", classID), func() ([]models.ScheduleDetail, error) {
		return s.repo.ListDetailsByClass(ctx, classID)
	})
}

// TeacherWeek returns the board for a teacher.
func (s *ScheduleService) TeacherWeek(ctx context.Context, teacherID string) ([]models.ScheduleDetail, bool, error) {
	return s.cachedBoard(ctx, boardKey("teacher", teacherID), func() ([]models.ScheduleDetail, error) {
		return s.repo.ListDetailsByTeacher(ctx, teacherID)
	})
}

// RoomWeek returns the board for a room.
func (s *ScheduleService) RoomWeek(ctx context.Context, room string) ([]models.ScheduleDetail, bool, error) {
	return s.cachedBoard(ctx, boardKey("room", room), func() ([]models.ScheduleDetail, error) {
		return s.repo.ListDetailsByRoom(ctx, room)
	})
}

// SlotOccupancy returns every lesson in one timeslot.
func (s *ScheduleService) SlotOccupancy(ctx context.Context, timeslotID string) ([]models.Schedule, error) {
	schedules, err := s.repo.ListByTimeSlot(ctx, timeslotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slot occupancy")
	}
	return schedules, nil
}

// InvalidateAllBoards drops every cached board. Called after bulk writes such
// as committing a generation run.
func (s *ScheduleService) InvalidateAllBoards(ctx context.Context) {
	if s.redis == nil || !s.boardCfg.Enabled {
		return
	}
	iter := s.redis.Scan(ctx, 0, "board:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("failed to drop board cache key", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("board cache scan failed", zap.Error(err))
	}
}

func (s *ScheduleService) buildCandidate(req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	weekType := models.WeekType(req.WeekType)
	if weekType == "" {
		weekType = models.WeekAll
	}
	return &models.Schedule{
		ClassID:    req.ClassID,
		TeacherID:  req.TeacherID,
		SubjectID:  req.SubjectID,
		TimeSlotID: req.TimeSlotID,
		Room:       normalizeOptional(req.Room),
		WeekType:   weekType,
	}, nil
}

// validateCandidate enforces the placement rules shared by Create, Update and
// Validate: no lessons in break slots, no lessons in a BLOCKED slot of the
// teacher and no double booking of teacher, class or room.
func (s *ScheduleService) validateCandidate(ctx context.Context, candidate *models.Schedule) error {
	slot, err := s.slots.FindByID(ctx, candidate.TimeSlotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "timeslot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeslot")
	}
	if slot.IsBreak {
		return appErrors.Clone(appErrors.ErrValidation, "lessons cannot be placed in break slots")
	}

	if s.availability != nil {
		availability, err := s.availability.CheckTeacherAvailability(ctx, candidate.TeacherID, slot.Weekday(), slot.Period, time.Now().UTC())
		if err != nil {
			return err
		}
		if availability == models.AvailabilityBlocked {
			return appErrors.Clone(appErrors.ErrValidation, "teacher is blocked for this slot")
		}
	}

	existing, err := s.repo.FindConflicting(ctx, candidate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	if len(existing) == 0 {
		return nil
	}

	conflictErr := &models.ScheduleConflictError{Message: "schedule conflicts with existing lessons"}
	for _, row := range existing {
		if dim := bookingOverlap(*candidate, row); dim != "" {
			conflictErr.Errors = append(conflictErr.Errors, conflictFrom(row, dim))
		}
	}
	if len(conflictErr.Errors) == 0 {
		return nil
	}
	return conflictErr
}

func (s *ScheduleService) cachedBoard(ctx context.Context, key string, load func() ([]models.ScheduleDetail, error)) ([]models.ScheduleDetail, bool, error) {
	if s.redis != nil && s.boardCfg.Enabled {
		if raw, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			var details []models.ScheduleDetail
			if err := json.Unmarshal(raw, &details); err == nil {
				return details, true, nil
			}
		}
	}

	details, err := load()
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week view")
	}

	if s.redis != nil && s.boardCfg.Enabled {
		if raw, err := json.Marshal(details); err == nil {
			if err := s.redis.Set(ctx, key, raw, s.boardCfg.CacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache board", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return details, false, nil
}

func (s *ScheduleService) invalidateBoards(ctx context.Context, schedule *models.Schedule) {
	if s.redis == nil || !s.boardCfg.Enabled {
		return
	}
	keys := []string{
		boardKey("class", schedule.ClassID),
		boardKey("teacher", schedule.TeacherID),
	}
	if schedule.Room != nil {
		keys = append(keys, boardKey("room", *schedule.Room))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("failed to invalidate board cache", zap.Error(err))
	}
}

func boardKey(kind, id string) string {
	return fmt.Sprintf("board:%s:%s", kind, id)
}

func bookingOverlap(a, b models.Schedule) string {
	switch {
	case a.TeacherID == b.TeacherID:
		return models.ConflictTeacher
	case a.ClassID == b.ClassID:
		return models.ConflictClass
	case a.Room != nil && b.Room != nil && *a.Room == *b.Room:
		return models.ConflictRoom
	}
	return ""
}

func conflictFrom(row models.Schedule, dimension string) models.ScheduleConflict {
	return models.ScheduleConflict{
		ScheduleID: row.ID,
		ClassID:    row.ClassID,
		TeacherID:  row.TeacherID,
		SubjectID:  row.SubjectID,
		TimeSlotID: row.TimeSlotID,
		Dimension:  dimension,
	}
}
