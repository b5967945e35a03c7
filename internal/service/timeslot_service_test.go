package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stundenplan/grundschule-api/internal/models"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type mockTimeSlotRepo struct {
	slots map[string]*models.TimeSlot
	order []string
}

func newMockTimeSlotRepo() *mockTimeSlotRepo {
	return &mockTimeSlotRepo{slots: map[string]*models.TimeSlot{}}
}

func (m *mockTimeSlotRepo) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, int, error) {
	var result []models.TimeSlot
	for _, id := range m.order {
		slot := m.slots[id]
		if filter.Day != nil && slot.Day != *filter.Day {
			continue
		}
		result = append(result, *slot)
	}
	return result, len(result), nil
}

func (m *mockTimeSlotRepo) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	if slot, ok := m.slots[id]; ok {
		cp := *slot
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTimeSlotRepo) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = fmt.Sprintf("slot-%d", len(m.order)+1)
	}
	cp := *slot
	m.slots[slot.ID] = &cp
	m.order = append(m.order, slot.ID)
	return nil
}

func (m *mockTimeSlotRepo) Update(ctx context.Context, slot *models.TimeSlot) error {
	cp := *slot
	m.slots[slot.ID] = &cp
	return nil
}

func (m *mockTimeSlotRepo) Delete(ctx context.Context, id string) error {
	delete(m.slots, id)
	return nil
}

func (m *mockTimeSlotRepo) CountAll(ctx context.Context) (int, error) {
	return len(m.slots), nil
}

func TestTimeSlotCreate(t *testing.T) {
	repo := newMockTimeSlotRepo()
	service := NewTimeSlotService(repo, nil, nil)

	slot, err := service.Create(context.Background(), CreateTimeSlotRequest{
		Day:       1,
		Period:    1,
		StartTime: "08:00",
		EndTime:   "08:45",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, slot.Day)
	assert.False(t, slot.IsBreak)
	assert.Equal(t, 0, slot.Weekday())
}

func TestTimeSlotCreateRejectsWeekend(t *testing.T) {
	service := NewTimeSlotService(newMockTimeSlotRepo(), nil, nil)

	_, err := service.Create(context.Background(), CreateTimeSlotRequest{
		Day:       6,
		Period:    1,
		StartTime: "08:00",
		EndTime:   "08:45",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestTimeSlotSeedWeek(t *testing.T) {
	repo := newMockTimeSlotRepo()
	service := NewTimeSlotService(repo, nil, nil)

	created, err := service.SeedWeek(context.Background())
	require.NoError(t, err)

	// Five days times eight periods, breaks included.
	assert.Equal(t, 40, created)
	assert.Len(t, repo.slots, 40)

	monday := 1
	slots, _, err := service.List(context.Background(), models.TimeSlotFilter{Day: &monday})
	require.NoError(t, err)
	require.Len(t, slots, 8)

	breaks := 0
	for _, slot := range slots {
		if slot.IsBreak {
			breaks++
		}
	}
	assert.Equal(t, 2, breaks)
	assert.Equal(t, "08:00", slots[0].StartTime)
}

func TestTimeSlotSeedWeekRefusesSecondRun(t *testing.T) {
	repo := newMockTimeSlotRepo()
	service := NewTimeSlotService(repo, nil, nil)

	_, err := service.SeedWeek(context.Background())
	require.NoError(t, err)

	_, err = service.SeedWeek(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.Len(t, repo.slots, 40)
}

func TestTimeSlotUpdate(t *testing.T) {
	repo := newMockTimeSlotRepo()
	require.NoError(t, repo.Create(context.Background(), &models.TimeSlot{ID: "ts1", Day: 1, Period: 3, StartTime: "09:35", EndTime: "09:55"}))
	service := NewTimeSlotService(repo, nil, nil)

	slot, err := service.Update(context.Background(), "ts1", CreateTimeSlotRequest{
		Day:       1,
		Period:    3,
		StartTime: "09:35",
		EndTime:   "09:55",
		IsBreak:   true,
	})
	require.NoError(t, err)
	assert.True(t, slot.IsBreak)
}

func TestTimeSlotGetNotFound(t *testing.T) {
	service := NewTimeSlotService(newMockTimeSlotRepo(), nil, nil)

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestTimeSlotDelete(t *testing.T) {
	repo := newMockTimeSlotRepo()
	require.NoError(t, repo.Create(context.Background(), &models.TimeSlot{ID: "ts1", Day: 2, Period: 1, StartTime: "08:00", EndTime: "08:45"}))
	service := NewTimeSlotService(repo, nil, nil)

	require.NoError(t, service.Delete(context.Background(), "ts1"))
	assert.Empty(t, repo.slots)

	err := service.Delete(context.Background(), "ts1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
