package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stundenplan/grundschule-api/internal/models"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type availabilityRepository interface {
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.TeacherAvailability, int, error)
	FindByID(ctx context.Context, id string) (*models.TeacherAvailability, error)
	ExistsForSlot(ctx context.Context, entry *models.TeacherAvailability, excludeID string) (bool, error)
	Create(ctx context.Context, entry *models.TeacherAvailability) error
	Update(ctx context.Context, entry *models.TeacherAvailability) error
	Delete(ctx context.Context, id string) error
}

type availabilityTeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateAvailabilityRequest represents payload for availability entries.
// Weekday is 0-based (Monday=0 .. Friday=4).
type CreateAvailabilityRequest struct {
	Weekday        int        `json:"weekday" validate:"min=0,max=4"`
	Period         int        `json:"period" validate:"required,min=1,max=10"`
	Type           string     `json:"availability_type" validate:"required,oneof=AVAILABLE BLOCKED PREFERRED"`
	EffectiveFrom  *time.Time `json:"effective_from"`
	EffectiveUntil *time.Time `json:"effective_until"`
}

// AvailabilityService manages recurring weekly availability entries.
type AvailabilityService struct {
	repo      availabilityRepository
	teachers  availabilityTeacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, teachers availabilityTeacherLookup, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// ListForTeacher returns a teacher's availability entries.
func (s *AvailabilityService) ListForTeacher(ctx context.Context, teacherID string, filter models.AvailabilityFilter) ([]models.TeacherAvailability, *models.Pagination, error) {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	filter.TeacherID = teacherID
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create registers an availability entry for a teacher. A teacher may have
// only one entry per (weekday, period, effective_from).
func (s *AvailabilityService) Create(ctx context.Context, teacherID string, req CreateAvailabilityRequest) (*models.TeacherAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if req.EffectiveFrom != nil && req.EffectiveUntil != nil && req.EffectiveUntil.Before(*req.EffectiveFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "effective_until precedes effective_from")
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	entry := &models.TeacherAvailability{
		TeacherID:      teacherID,
		Weekday:        req.Weekday,
		Period:         req.Period,
		Type:           models.AvailabilityType(req.Type),
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
	}

	exists, err := s.repo.ExistsForSlot(ctx, entry, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability slot")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "availability entry for this slot already exists")
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability")
	}
	return entry, nil
}

// Update modifies an availability entry.
func (s *AvailabilityService) Update(ctx context.Context, id string, req CreateAvailabilityRequest) (*models.TeacherAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	entry.Weekday = req.Weekday
	entry.Period = req.Period
	entry.Type = models.AvailabilityType(req.Type)
	entry.EffectiveFrom = req.EffectiveFrom
	entry.EffectiveUntil = req.EffectiveUntil

	exists, err := s.repo.ExistsForSlot(ctx, entry, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability slot")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "availability entry for this slot already exists")
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
	}
	return entry, nil
}

// Delete removes an availability entry.
func (s *AvailabilityService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "availability entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability")
	}
	return nil
}

// CheckTeacherAvailability reports how a teacher relates to a weekly slot on
// a given date. Without a matching entry the teacher counts as available.
func (s *AvailabilityService) CheckTeacherAvailability(ctx context.Context, teacherID string, weekday, period int, date time.Time) (models.AvailabilityType, error) {
	filter := models.AvailabilityFilter{TeacherID: teacherID, Weekday: &weekday, PageSize: 200}
	entries, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	for _, entry := range entries {
		if entry.Period != period {
			continue
		}
		if !entry.EffectiveAt(date) {
			continue
		}
		return entry.Type, nil
	}
	return models.AvailabilityAvailable, nil
}
