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
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
)

type stubQualificationRepo struct {
	byID       map[string]*models.TeacherSubject
	byPair     map[string]*models.TeacherSubject
	pairExists bool
	created    []*models.TeacherSubject
}

func newStubQualificationRepo() *stubQualificationRepo {
	return &stubQualificationRepo{
		byID:   map[string]*models.TeacherSubject{},
		byPair: map[string]*models.TeacherSubject{},
	}
}

func (r *stubQualificationRepo) addPair(qual *models.TeacherSubject) {
	r.byID[qual.ID] = qual
	r.byPair[qual.TeacherID+"|"+qual.SubjectID] = qual
}

func (r *stubQualificationRepo) List(ctx context.Context, filter models.QualificationFilter) ([]models.TeacherSubject, int, error) {
	var result []models.TeacherSubject
	for _, qual := range r.byID {
		if filter.TeacherID != "" && qual.TeacherID != filter.TeacherID {
			continue
		}
		if filter.SubjectID != "" && qual.SubjectID != filter.SubjectID {
			continue
		}
		result = append(result, *qual)
	}
	return result, len(result), nil
}

func (r *stubQualificationRepo) ListAll(ctx context.Context) ([]models.TeacherSubject, error) {
	var result []models.TeacherSubject
	for _, qual := range r.byID {
		result = append(result, *qual)
	}
	return result, nil
}

func (r *stubQualificationRepo) FindByID(ctx context.Context, id string) (*models.TeacherSubject, error) {
	if qual, ok := r.byID[id]; ok {
		copied := *qual
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubQualificationRepo) FindByPair(ctx context.Context, teacherID, subjectID string) (*models.TeacherSubject, error) {
	if qual, ok := r.byPair[teacherID+"|"+subjectID]; ok {
		copied := *qual
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubQualificationRepo) ExistsForPair(ctx context.Context, teacherID, subjectID, excludeID string) (bool, error) {
	return r.pairExists, nil
}

func (r *stubQualificationRepo) Create(ctx context.Context, qual *models.TeacherSubject) error {
	r.created = append(r.created, qual)
	return nil
}

func (r *stubQualificationRepo) Update(ctx context.Context, qual *models.TeacherSubject) error {
	r.byID[qual.ID] = qual
	return nil
}

func (r *stubQualificationRepo) Delete(ctx context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

type stubSubjectLookup struct {
	subject *models.Subject
}

func (s stubSubjectLookup) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s.subject == nil {
		return nil, sql.ErrNoRows
	}
	return s.subject, nil
}

func knownSubject() stubSubjectLookup {
	return stubSubjectLookup{subject: &models.Subject{ID: "su1", Name: "Mathematik", Code: "MA"}}
}

func newQualificationServiceForTest(repo *stubQualificationRepo) *QualificationService {
	return NewQualificationService(repo, knownTeacher(), knownSubject(), nil, nil)
}

func TestQualificationCreate(t *testing.T) {
	repo := newStubQualificationRepo()
	svc := newQualificationServiceForTest(repo)

	qual, err := svc.Create(context.Background(), "t1", CreateQualificationRequest{
		SubjectID: uuid.NewString(),
		Level:     string(models.QualificationPrimary),
		Grades:    []int{1, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, models.QualificationPrimary, qual.Level)
	assert.Equal(t, models.GradeList{1, 2}, qual.Grades)
	require.Len(t, repo.created, 1)
}

func TestQualificationCreateDuplicatePair(t *testing.T) {
	repo := newStubQualificationRepo()
	repo.pairExists = true
	svc := newQualificationServiceForTest(repo)

	_, err := svc.Create(context.Background(), "t1", CreateQualificationRequest{
		SubjectID: uuid.NewString(),
		Level:     string(models.QualificationPrimary),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestQualificationCreateRejectsInvalidGrade(t *testing.T) {
	svc := newQualificationServiceForTest(newStubQualificationRepo())

	_, err := svc.Create(context.Background(), "t1", CreateQualificationRequest{
		SubjectID: uuid.NewString(),
		Level:     string(models.QualificationPrimary),
		Grades:    []int{1, 5},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestCanTeachWithoutQualification(t *testing.T) {
	svc := newQualificationServiceForTest(newStubQualificationRepo())

	check, err := svc.CanTeach(context.Background(), "t1", "su1", 2, time.Now())
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "no qualification for this subject", check.Reason)
}

func TestCanTeachSubstituteOnly(t *testing.T) {
	repo := newStubQualificationRepo()
	repo.addPair(&models.TeacherSubject{
		ID: "q1", TeacherID: "t1", SubjectID: "su1",
		Level: models.QualificationSubstitute,
	})
	svc := newQualificationServiceForTest(repo)

	check, err := svc.CanTeach(context.Background(), "t1", "su1", 2, time.Now())
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, models.QualificationSubstitute, check.Level)
}

func TestCanTeachGradeRestriction(t *testing.T) {
	repo := newStubQualificationRepo()
	repo.addPair(&models.TeacherSubject{
		ID: "q1", TeacherID: "t1", SubjectID: "su1",
		Level:  models.QualificationPrimary,
		Grades: models.GradeList{1, 2},
	})
	svc := newQualificationServiceForTest(repo)

	check, err := svc.CanTeach(context.Background(), "t1", "su1", 2, time.Now())
	require.NoError(t, err)
	assert.True(t, check.Allowed)

	check, err = svc.CanTeach(context.Background(), "t1", "su1", 4, time.Now())
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "qualification does not cover this grade", check.Reason)
}

func TestCanTeachExpiredCertification(t *testing.T) {
	expired := time.Now().AddDate(-1, 0, 0)
	repo := newStubQualificationRepo()
	repo.addPair(&models.TeacherSubject{
		ID: "q1", TeacherID: "t1", SubjectID: "su1",
		Level:                models.QualificationSecondary,
		CertificationExpires: &expired,
	})
	svc := newQualificationServiceForTest(repo)

	check, err := svc.CanTeach(context.Background(), "t1", "su1", 1, time.Now())
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "certification has expired", check.Reason)
}

func TestCanTeachEmptyGradeListAllowsAll(t *testing.T) {
	repo := newStubQualificationRepo()
	repo.addPair(&models.TeacherSubject{
		ID: "q1", TeacherID: "t1", SubjectID: "su1",
		Level: models.QualificationPrimary,
	})
	svc := newQualificationServiceForTest(repo)

	for grade := 1; grade <= 4; grade++ {
		check, err := svc.CanTeach(context.Background(), "t1", "su1", grade, time.Now())
		require.NoError(t, err)
		assert.True(t, check.Allowed)
	}
}

func TestQualificationMatrixGroupsByTeacher(t *testing.T) {
	repo := newStubQualificationRepo()
	repo.addPair(&models.TeacherSubject{ID: "q1", TeacherID: "t1", SubjectID: "su1", Level: models.QualificationPrimary})
	repo.addPair(&models.TeacherSubject{ID: "q2", TeacherID: "t1", SubjectID: "su2", Level: models.QualificationSecondary})
	repo.addPair(&models.TeacherSubject{ID: "q3", TeacherID: "t2", SubjectID: "su1", Level: models.QualificationSubstitute})
	svc := newQualificationServiceForTest(repo)

	matrix, err := svc.Matrix(context.Background())
	require.NoError(t, err)

	require.Len(t, matrix, 2)
	assert.Len(t, matrix["t1"], 2)
	assert.Len(t, matrix["t2"], 1)
}

func TestQualificationUpdateKeepsPair(t *testing.T) {
	repo := newStubQualificationRepo()
	repo.addPair(&models.TeacherSubject{
		ID: "q1", TeacherID: "t1", SubjectID: "su1",
		Level: models.QualificationSecondary,
	})
	svc := newQualificationServiceForTest(repo)

	qual, err := svc.Update(context.Background(), "q1", UpdateQualificationRequest{
		Level:  string(models.QualificationPrimary),
		Grades: []int{3, 4},
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", qual.TeacherID)
	assert.Equal(t, "su1", qual.SubjectID)
	assert.Equal(t, models.QualificationPrimary, qual.Level)
}
