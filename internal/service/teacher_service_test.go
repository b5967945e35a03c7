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

type mockTeacherRepo struct {
	items        map[string]*models.Teacher
	emailIndex   map[string]string
	abbrevIndex  map[string]string
	listResult   []models.Teacher
	listTotal    int
	deactivated  []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	if owner, ok := m.emailIndex[email]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) ExistsByAbbreviation(ctx context.Context, abbreviation, excludeID string) (bool, error) {
	if owner, ok := m.abbrevIndex[abbreviation]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	now := time.Now()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	if t, ok := m.items[id]; ok {
		t.Active = false
	}
	return nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, nil, nil)

	teacher, err := service.Create(context.Background(), CreateTeacherRequest{
		FirstName:    "Anna",
		LastName:     "Muster",
		Email:        "a.muster@example.com",
		Abbreviation: "amu",
	})
	require.NoError(t, err)

	assert.Equal(t, "AMU", teacher.Abbreviation)
	assert.Equal(t, models.DefaultMaxHoursPerWeek, teacher.MaxHoursPerWeek)
	assert.True(t, teacher.Active)
	assert.Equal(t, "Anna Muster", teacher.FullName())
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockTeacherRepo{emailIndex: map[string]string{"a.muster@example.com": "another"}}
	service := NewTeacherService(repo, nil, nil)

	_, err := service.Create(context.Background(), CreateTeacherRequest{
		FirstName:    "Anna",
		LastName:     "Muster",
		Email:        "a.muster@example.com",
		Abbreviation: "AMU",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestTeacherServiceCreateDuplicateAbbreviation(t *testing.T) {
	repo := &mockTeacherRepo{abbrevIndex: map[string]string{"AMU": "another"}}
	service := NewTeacherService(repo, nil, nil)

	_, err := service.Create(context.Background(), CreateTeacherRequest{
		FirstName:    "Anna",
		LastName:     "Muster",
		Email:        "a.muster@example.com",
		Abbreviation: "AMU",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestTeacherServiceCreateRejectsLongAbbreviation(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, nil)

	_, err := service.Create(context.Background(), CreateTeacherRequest{
		FirstName:    "Anna",
		LastName:     "Muster",
		Email:        "a.muster@example.com",
		Abbreviation: "MUST",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestTeacherServiceUpdate(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", FirstName: "Anna", LastName: "Muster", Email: "a.muster@example.com", Abbreviation: "AMU", MaxHoursPerWeek: 28, Active: true},
		},
	}
	service := NewTeacherService(repo, nil, nil)

	partTime := true
	hours := 14
	updated, err := service.Update(context.Background(), "t1", UpdateTeacherRequest{
		FirstName:       "Anna",
		LastName:        "Beispiel",
		Email:           "a.beispiel@example.com",
		Abbreviation:    "ABE",
		MaxHoursPerWeek: &hours,
		IsPartTime:      &partTime,
	})
	require.NoError(t, err)

	assert.Equal(t, "Beispiel", updated.LastName)
	assert.Equal(t, "ABE", updated.Abbreviation)
	assert.Equal(t, 14, updated.MaxHoursPerWeek)
	assert.True(t, updated.IsPartTime)
	assert.True(t, updated.Active)
}

func TestTeacherServiceUpdateNotFound(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, nil)

	_, err := service.Update(context.Background(), "missing", UpdateTeacherRequest{
		FirstName:    "Anna",
		LastName:     "Muster",
		Email:        "a.muster@example.com",
		Abbreviation: "AMU",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestTeacherServiceDeactivate(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", FirstName: "Anna", LastName: "Muster", Active: true},
		},
	}
	service := NewTeacherService(repo, nil, nil)

	require.NoError(t, service.Deactivate(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, repo.deactivated)

	err := service.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
