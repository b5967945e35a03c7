package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stundenplan/grundschule-api/internal/models"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type stubAvailabilityRepo struct {
	entries    []models.TeacherAvailability
	byID       map[string]*models.TeacherAvailability
	slotExists bool
	created    []*models.TeacherAvailability
	deleted    []string
}

func newStubAvailabilityRepo() *stubAvailabilityRepo {
	return &stubAvailabilityRepo{byID: map[string]*models.TeacherAvailability{}}
}

func (r *stubAvailabilityRepo) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.TeacherAvailability, int, error) {
	var result []models.TeacherAvailability
	for _, entry := range r.entries {
		if filter.TeacherID != "" && entry.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Weekday != nil && entry.Weekday != *filter.Weekday {
			continue
		}
		result = append(result, entry)
	}
	return result, len(result), nil
}

func (r *stubAvailabilityRepo) FindByID(ctx context.Context, id string) (*models.TeacherAvailability, error) {
	if entry, ok := r.byID[id]; ok {
		copied := *entry
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubAvailabilityRepo) ExistsForSlot(ctx context.Context, entry *models.TeacherAvailability, excludeID string) (bool, error) {
	return r.slotExists, nil
}

func (r *stubAvailabilityRepo) Create(ctx context.Context, entry *models.TeacherAvailability) error {
	r.created = append(r.created, entry)
	return nil
}

func (r *stubAvailabilityRepo) Update(ctx context.Context, entry *models.TeacherAvailability) error {
	r.byID[entry.ID] = entry
	return nil
}

func (r *stubAvailabilityRepo) Delete(ctx context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

type stubTeacherLookup struct {
	teacher *models.Teacher
}

func (s stubTeacherLookup) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if s.teacher == nil {
		return nil, sql.ErrNoRows
	}
	return s.teacher, nil
}

func knownTeacher() stubTeacherLookup {
	return stubTeacherLookup{teacher: &models.Teacher{ID: "t1", FirstName: "Anna", LastName: "Muster", Active: true}}
}

func TestAvailabilityCreate(t *testing.T) {
	repo := newStubAvailabilityRepo()
	svc := NewAvailabilityService(repo, knownTeacher(), nil, nil)

	entry, err := svc.Create(context.Background(), "t1", CreateAvailabilityRequest{
		Weekday: 0,
		Period:  1,
		Type:    string(models.AvailabilityBlocked),
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", entry.TeacherID)
	assert.Equal(t, models.AvailabilityBlocked, entry.Type)
	require.Len(t, repo.created, 1)
}

func TestAvailabilityCreateDuplicateSlot(t *testing.T) {
	repo := newStubAvailabilityRepo()
	repo.slotExists = true
	svc := NewAvailabilityService(repo, knownTeacher(), nil, nil)

	_, err := svc.Create(context.Background(), "t1", CreateAvailabilityRequest{
		Weekday: 0,
		Period:  1,
		Type:    string(models.AvailabilityBlocked),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestAvailabilityCreateInvalidDateRange(t *testing.T) {
	svc := NewAvailabilityService(newStubAvailabilityRepo(), knownTeacher(), nil, nil)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, -1, 0)
	_, err := svc.Create(context.Background(), "t1", CreateAvailabilityRequest{
		Weekday:        1,
		Period:         2,
		Type:           string(models.AvailabilityPreferred),
		EffectiveFrom:  &from,
		EffectiveUntil: &until,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestAvailabilityCreateUnknownTeacher(t *testing.T) {
	svc := NewAvailabilityService(newStubAvailabilityRepo(), stubTeacherLookup{}, nil, nil)

	_, err := svc.Create(context.Background(), "missing", CreateAvailabilityRequest{
		Weekday: 0,
		Period:  1,
		Type:    string(models.AvailabilityBlocked),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestAvailabilityCreateRejectsWeekend(t *testing.T) {
	svc := NewAvailabilityService(newStubAvailabilityRepo(), knownTeacher(), nil, nil)

	_, err := svc.Create(context.Background(), "t1", CreateAvailabilityRequest{
		Weekday: 5,
		Period:  1,
		Type:    string(models.AvailabilityBlocked),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestCheckTeacherAvailability(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	expired := now.AddDate(0, 0, -7)

	repo := newStubAvailabilityRepo()
	repo.entries = []models.TeacherAvailability{
		{ID: "a1", TeacherID: "t1", Weekday: 0, Period: 1, Type: models.AvailabilityBlocked},
		{ID: "a2", TeacherID: "t1", Weekday: 0, Period: 2, Type: models.AvailabilityPreferred},
		{ID: "a3", TeacherID: "t1", Weekday: 1, Period: 1, Type: models.AvailabilityBlocked, EffectiveUntil: &expired},
	}
	svc := NewAvailabilityService(repo, knownTeacher(), nil, nil)

	result, err := svc.CheckTeacherAvailability(context.Background(), "t1", 0, 1, now)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityBlocked, result)

	result, err = svc.CheckTeacherAvailability(context.Background(), "t1", 0, 2, now)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityPreferred, result)

	// Entry a3 ran out a week ago, so the slot falls back to available.
	result, err = svc.CheckTeacherAvailability(context.Background(), "t1", 1, 1, now)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAvailable, result)

	result, err = svc.CheckTeacherAvailability(context.Background(), "t1", 4, 6, now)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAvailable, result)
}

func TestAvailabilityDelete(t *testing.T) {
	repo := newStubAvailabilityRepo()
	repo.byID["a1"] = &models.TeacherAvailability{ID: "a1", TeacherID: "t1"}
	svc := NewAvailabilityService(repo, knownTeacher(), nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "a1"))
	assert.Equal(t, []string{"a1"}, repo.deleted)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
