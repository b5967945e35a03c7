package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stundenplan/grundschule-api/internal/models"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
	"github.com/stundenplan/grundschule-api/pkg/storage"
)

type stubExportSchedules struct {
	byClass   []models.ScheduleDetail
	byTeacher []models.ScheduleDetail
}

func (s stubExportSchedules) ListDetailsByClass(ctx context.Context, classID string) ([]models.ScheduleDetail, error) {
	return s.byClass, nil
}

func (s stubExportSchedules) ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	return s.byTeacher, nil
}

type stubExportSlots struct {
	slots []models.TimeSlot
}

func (s stubExportSlots) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, int, error) {
	return s.slots, len(s.slots), nil
}

type stubExportClasses struct {
	class *models.Class
}

func (s stubExportClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return s.class, nil
}

type stubExportTeachers struct {
	teacher *models.Teacher
}

func (s stubExportTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	return s.teacher, nil
}

func lessonDetail(day, period int, code, teacher, class string, week models.WeekType) models.ScheduleDetail {
	return models.ScheduleDetail{
		Schedule:    models.Schedule{WeekType: week},
		SubjectCode: code,
		TeacherName: teacher,
		ClassName:   class,
		Day:         day,
		Period:      period,
	}
}

func newExportServiceForTest(t *testing.T, schedules stubExportSchedules) *ExportService {
	t.Helper()

	fileStore, err := storage.NewExportStore(t.TempDir())
	require.NoError(t, err)

	signer := storage.NewDownloadSigner("export-test-secret", time.Hour)

	slots := stubExportSlots{slots: []models.TimeSlot{
		{ID: "s1", Day: 1, Period: 1, StartTime: "08:00", EndTime: "08:45"},
		{ID: "s2", Day: 1, Period: 2, StartTime: "08:50", EndTime: "09:35"},
		{ID: "s3", Day: 1, Period: 3, StartTime: "09:35", EndTime: "09:55", IsBreak: true},
	}}
	classes := stubExportClasses{class: &models.Class{ID: "c1", Name: "1a", Grade: 1}}
	teachers := stubExportTeachers{teacher: &models.Teacher{
		ID:           "t1",
		FirstName:    "Anna",
		LastName:     "Muster",
		Abbreviation: "AMU",
	}}

	return NewExportService(schedules, slots, classes, teachers, fileStore, signer, ExportOptions{APIPrefix: "/api/v1"}, nil)
}

func TestExportClassWeekCSV(t *testing.T) {
	schedules := stubExportSchedules{byClass: []models.ScheduleDetail{
		lessonDetail(1, 1, "MA", "Anna Muster", "1a", models.WeekAll),
		lessonDetail(2, 1, "SU", "Anna Muster", "1a", models.WeekA),
	}}
	svc := newExportServiceForTest(t, schedules)

	result, err := svc.ClassWeek(context.Background(), "c1", "")
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, result.Format)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.URL, "/api/v1/exports/download/")

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()

	content, err := os.ReadFile(file.Name())
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "Stunde")
	assert.Contains(t, text, "Montag")
	assert.Contains(t, text, "MA (Anna Muster)")
	assert.Contains(t, text, "SU (Anna Muster) [A]")
	assert.Contains(t, text, "Pause")
}

func TestExportTeacherWeekPDF(t *testing.T) {
	schedules := stubExportSchedules{byTeacher: []models.ScheduleDetail{
		lessonDetail(3, 2, "DE", "Anna Muster", "2b", models.WeekAll),
	}}
	svc := newExportServiceForTest(t, schedules)

	result, err := svc.TeacherWeek(context.Background(), "t1", FormatPDF)
	require.NoError(t, err)

	assert.Equal(t, FormatPDF, result.Format)
	assert.Contains(t, filepath.Base(result.RelativePath), "AMU")

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := newExportServiceForTest(t, stubExportSchedules{})

	_, err := svc.ClassWeek(context.Background(), "c1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestExportTokenRoundTrip(t *testing.T) {
	schedules := stubExportSchedules{byClass: []models.ScheduleDetail{
		lessonDetail(1, 1, "MA", "Anna Muster", "1a", models.WeekAll),
	}}
	svc := newExportServiceForTest(t, schedules)

	result, err := svc.ClassWeek(context.Background(), "c1", FormatCSV)
	require.NoError(t, err)

	relPath, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.RelativePath, relPath)

	_, err = svc.ParseToken("tampered-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}
