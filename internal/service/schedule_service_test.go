package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stundenplan/grundschule-api/internal/models"
	"github.com/stundenplan/grundschule-api/pkg/config"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type stubScheduleRepo struct {
	byID        map[string]*models.Schedule
	all         []models.Schedule
	conflicting []models.Schedule
	created     []*models.Schedule
	updated     []*models.Schedule
	deleted     []string
}

func newStubScheduleRepo() *stubScheduleRepo {
	return &stubScheduleRepo{byID: map[string]*models.Schedule{}}
}

func (r *stubScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	return r.all, len(r.all), nil
}

func (r *stubScheduleRepo) ListAll(ctx context.Context) ([]models.Schedule, error) {
	return r.all, nil
}

func (r *stubScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	if schedule, ok := r.byID[id]; ok {
		copied := *schedule
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubScheduleRepo) ListDetailsByClass(ctx context.Context, classID string) ([]models.ScheduleDetail, error) {
	return nil, nil
}

func (r *stubScheduleRepo) ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	return nil, nil
}

func (r *stubScheduleRepo) ListDetailsByRoom(ctx context.Context, room string) ([]models.ScheduleDetail, error) {
	return nil, nil
}

func (r *stubScheduleRepo) ListByTimeSlot(ctx context.Context, timeslotID string) ([]models.Schedule, error) {
	return r.all, nil
}

func (r *stubScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	r.created = append(r.created, schedule)
	return nil
}

func (r *stubScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	r.updated = append(r.updated, schedule)
	return nil
}

func (r *stubScheduleRepo) Delete(ctx context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubScheduleRepo) FindConflicting(ctx context.Context, candidate *models.Schedule) ([]models.Schedule, error) {
	return r.conflicting, nil
}

type stubSlotLookup struct {
	slot *models.TimeSlot
}

func (s stubSlotLookup) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	if s.slot == nil {
		return nil, sql.ErrNoRows
	}
	return s.slot, nil
}

type stubAvailabilityLookup struct {
	result models.AvailabilityType
}

func (s stubAvailabilityLookup) CheckTeacherAvailability(ctx context.Context, teacherID string, weekday, period int, date time.Time) (models.AvailabilityType, error) {
	return s.result, nil
}

func teachingSlot() *models.TimeSlot {
	return &models.TimeSlot{ID: uuid.NewString(), Day: 2, Period: 3, StartTime: "09:50", EndTime: "10:35"}
}

func validScheduleRequest(slotID string) CreateScheduleRequest {
	return CreateScheduleRequest{
		ClassID:    uuid.NewString(),
		TeacherID:  uuid.NewString(),
		SubjectID:  uuid.NewString(),
		TimeSlotID: slotID,
	}
}

func newScheduleServiceForTest(repo *stubScheduleRepo, slot *models.TimeSlot, availability models.AvailabilityType) *ScheduleService {
	return NewScheduleService(repo, stubSlotLookup{slot: slot}, stubAvailabilityLookup{result: availability}, nil, config.BoardCacheConfig{}, nil, nil)
}

func TestScheduleCreateDefaultsWeekType(t *testing.T) {
	repo := newStubScheduleRepo()
	slot := teachingSlot()
	svc := newScheduleServiceForTest(repo, slot, models.AvailabilityAvailable)

	schedule, err := svc.Create(context.Background(), validScheduleRequest(slot.ID))
	require.NoError(t, err)

	assert.Equal(t, models.WeekAll, schedule.WeekType)
	require.Len(t, repo.created, 1)
}

func TestScheduleCreateRejectsBreakSlot(t *testing.T) {
	slot := teachingSlot()
	slot.IsBreak = true
	svc := newScheduleServiceForTest(newStubScheduleRepo(), slot, models.AvailabilityAvailable)

	_, err := svc.Create(context.Background(), validScheduleRequest(slot.ID))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
	assert.Contains(t, err.Error(), "break")
}

func TestScheduleCreateRejectsBlockedTeacher(t *testing.T) {
	slot := teachingSlot()
	svc := newScheduleServiceForTest(newStubScheduleRepo(), slot, models.AvailabilityBlocked)

	_, err := svc.Create(context.Background(), validScheduleRequest(slot.ID))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
	assert.Contains(t, err.Error(), "blocked")
}

func TestScheduleCreateReportsTeacherConflict(t *testing.T) {
	repo := newStubScheduleRepo()
	slot := teachingSlot()
	svc := newScheduleServiceForTest(repo, slot, models.AvailabilityAvailable)

	req := validScheduleRequest(slot.ID)
	repo.conflicting = []models.Schedule{{
		ID:         "existing-1",
		ClassID:    uuid.NewString(),
		TeacherID:  req.TeacherID,
		SubjectID:  uuid.NewString(),
		TimeSlotID: slot.ID,
		WeekType:   models.WeekAll,
	}}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)

	var conflictErr *models.ScheduleConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Errors, 1)
	assert.Equal(t, models.ConflictTeacher, conflictErr.Errors[0].Dimension)
	assert.Equal(t, "existing-1", conflictErr.Errors[0].ScheduleID)
	assert.Empty(t, repo.created)
}

func TestScheduleValidateDryRun(t *testing.T) {
	repo := newStubScheduleRepo()
	slot := teachingSlot()
	svc := newScheduleServiceForTest(repo, slot, models.AvailabilityAvailable)

	req := validScheduleRequest(slot.ID)
	conflicts, err := svc.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	repo.conflicting = []models.Schedule{{
		ID:        "existing-1",
		ClassID:   req.ClassID,
		TeacherID: uuid.NewString(),
	}}
	conflicts, err = svc.Validate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictClass, conflicts[0].Dimension)
	assert.Empty(t, repo.created)
}

func TestAllConflictsPairwiseSweep(t *testing.T) {
	repo := newStubScheduleRepo()
	slot := teachingSlot()
	svc := newScheduleServiceForTest(repo, slot, models.AvailabilityAvailable)

	teacherID := uuid.NewString()
	repo.all = []models.Schedule{
		{ID: "s1", TimeSlotID: "ts1", TeacherID: teacherID, ClassID: "c1", WeekType: models.WeekAll},
		{ID: "s2", TimeSlotID: "ts1", TeacherID: teacherID, ClassID: "c2", WeekType: models.WeekAll},
		{ID: "s3", TimeSlotID: "ts1", TeacherID: uuid.NewString(), ClassID: "c3", WeekType: models.WeekA},
		{ID: "s4", TimeSlotID: "ts1", TeacherID: uuid.NewString(), ClassID: "c3", WeekType: models.WeekB},
		{ID: "s5", TimeSlotID: "ts2", TeacherID: teacherID, ClassID: "c1", WeekType: models.WeekAll},
	}

	conflicts, err := svc.AllConflicts(context.Background())
	require.NoError(t, err)

	// s1/s2 collide on the teacher; s3/s4 share a class but alternate weeks.
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Dimension)
	assert.Equal(t, "s2", conflicts[0].ScheduleID)
}

func TestScheduleGetNotFound(t *testing.T) {
	svc := newScheduleServiceForTest(newStubScheduleRepo(), teachingSlot(), models.AvailabilityAvailable)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestScheduleDeleteInvalidatesNothingWithoutCache(t *testing.T) {
	repo := newStubScheduleRepo()
	repo.byID["s1"] = &models.Schedule{ID: "s1", ClassID: "c1", TeacherID: "t1"}
	svc := newScheduleServiceForTest(repo, teachingSlot(), models.AvailabilityAvailable)

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
}
