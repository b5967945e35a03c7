package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stundenplan/grundschule-api/internal/models"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type timeslotRepository interface {
	List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	Update(ctx context.Context, slot *models.TimeSlot) error
	Delete(ctx context.Context, id string) error
	CountAll(ctx context.Context) (int, error)
}

// CreateTimeSlotRequest represents payload for creating timeslots.
type CreateTimeSlotRequest struct {
	Day       int    `json:"day" validate:"required,min=1,max=5"`
	Period    int    `json:"period" validate:"required,min=1,max=10"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	IsBreak   bool   `json:"is_break"`
}

// TimeSlotService orchestrates the weekly period grid.
type TimeSlotService struct {
	repo      timeslotRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimeSlotService constructs a TimeSlotService.
func NewTimeSlotService(repo timeslotRepository, validate *validator.Validate, logger *zap.Logger) *TimeSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeSlotService{repo: repo, validator: validate, logger: logger}
}

// List returns timeslots plus pagination data.
func (s *TimeSlotService) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timeslots")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return slots, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a timeslot by id.
func (s *TimeSlotService) Get(ctx context.Context, id string) (*models.TimeSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timeslot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeslot")
	}
	return slot, nil
}

// Create registers a new timeslot.
func (s *TimeSlotService) Create(ctx context.Context, req CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timeslot payload")
	}

	slot := &models.TimeSlot{
		Day:       req.Day,
		Period:    req.Period,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsBreak:   req.IsBreak,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timeslot")
	}
	return slot, nil
}

// Update modifies an existing timeslot.
func (s *TimeSlotService) Update(ctx context.Context, id string, req CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timeslot payload")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timeslot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeslot")
	}

	slot.Day = req.Day
	slot.Period = req.Period
	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	slot.IsBreak = req.IsBreak

	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timeslot")
	}
	return slot, nil
}

// Delete removes a timeslot.
func (s *TimeSlotService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "timeslot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeslot")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timeslot")
	}
	return nil
}

// gridPeriod describes one row of the standard school day.
type gridPeriod struct {
	period  int
	start   string
	end     string
	isBreak bool
}

// standardGrid is the default daily layout: six teaching periods with a
// breakfast break after the second and a yard break after the fourth.
var standardGrid = []gridPeriod{
	{1, "08:00", "08:45", false},
	{2, "08:50", "09:35", false},
	{3, "09:35", "09:55", true},
	{4, "09:55", "10:40", false},
	{5, "10:45", "11:30", false},
	{6, "11:30", "11:50", true},
	{7, "11:50", "12:35", false},
	{8, "12:40", "13:25", false},
}

// SeedWeek creates the standard Monday-Friday grid. It refuses to run when
// slots already exist so a second call cannot duplicate the grid.
func (s *TimeSlotService) SeedWeek(ctx context.Context) (int, error) {
	existing, err := s.repo.CountAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count timeslots")
	}
	if existing > 0 {
		return 0, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("grid already seeded with %d slots", existing))
	}

	created := 0
	for day := models.MinDay; day <= models.MaxDay; day++ {
		for _, p := range standardGrid {
			slot := &models.TimeSlot{
				Day:       day,
				Period:    p.period,
				StartTime: p.start,
				EndTime:   p.end,
				IsBreak:   p.isBreak,
			}
			if err := s.repo.Create(ctx, slot); err != nil {
				return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed timeslot")
			}
			created++
		}
	}

	s.logger.Info("seeded weekly grid", zap.Int("slots", created))
	return created, nil
}
