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

type qualificationRepository interface {
	List(ctx context.Context, filter models.QualificationFilter) ([]models.TeacherSubject, int, error)
	ListAll(ctx context.Context) ([]models.TeacherSubject, error)
	FindByID(ctx context.Context, id string) (*models.TeacherSubject, error)
	FindByPair(ctx context.Context, teacherID, subjectID string) (*models.TeacherSubject, error)
	ExistsForPair(ctx context.Context, teacherID, subjectID, excludeID string) (bool, error)
	Create(ctx context.Context, qual *models.TeacherSubject) error
	Update(ctx context.Context, qual *models.TeacherSubject) error
	Delete(ctx context.Context, id string) error
}

type qualificationTeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type qualificationSubjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// CreateQualificationRequest represents payload for qualification links.
type CreateQualificationRequest struct {
	SubjectID            string     `json:"subject_id" validate:"required,uuid"`
	Level                string     `json:"qualification_level" validate:"required,oneof=PRIMARY SECONDARY SUBSTITUTE"`
	Grades               []int      `json:"grades" validate:"omitempty,dive,min=1,max=4"`
	MaxHoursPerWeek      *int       `json:"max_hours_per_week" validate:"omitempty,min=1,max=30"`
	CertificationDate    *time.Time `json:"certification_date"`
	CertificationExpires *time.Time `json:"certification_expires"`
}

// UpdateQualificationRequest represents payload for updating a link.
type UpdateQualificationRequest struct {
	Level                string     `json:"qualification_level" validate:"required,oneof=PRIMARY SECONDARY SUBSTITUTE"`
	Grades               []int      `json:"grades" validate:"omitempty,dive,min=1,max=4"`
	MaxHoursPerWeek      *int       `json:"max_hours_per_week" validate:"omitempty,min=1,max=30"`
	CertificationDate    *time.Time `json:"certification_date"`
	CertificationExpires *time.Time `json:"certification_expires"`
}

// TeachingCheck is the result of asking whether a teacher may take a
// (subject, grade) combination on a given date.
type TeachingCheck struct {
	Allowed bool                      `json:"allowed"`
	Level   models.QualificationLevel `json:"qualification_level,omitempty"`
	Reason  string                    `json:"reason,omitempty"`
}

// QualificationService manages teacher-subject qualification links.
type QualificationService struct {
	repo      qualificationRepository
	teachers  qualificationTeacherLookup
	subjects  qualificationSubjectLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQualificationService constructs a QualificationService.
func NewQualificationService(repo qualificationRepository, teachers qualificationTeacherLookup, subjects qualificationSubjectLookup, validate *validator.Validate, logger *zap.Logger) *QualificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualificationService{repo: repo, teachers: teachers, subjects: subjects, validator: validate, logger: logger}
}

// List returns qualification links matching the filter.
func (s *QualificationService) List(ctx context.Context, filter models.QualificationFilter) ([]models.TeacherSubject, *models.Pagination, error) {
	quals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qualifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return quals, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListForTeacher returns all subjects a teacher is qualified for.
func (s *QualificationService) ListForTeacher(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	quals, _, err := s.repo.List(ctx, models.QualificationFilter{TeacherID: teacherID, PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qualifications")
	}
	return quals, nil
}

// QualifiedTeachers returns the qualification links for one subject, i.e.
// which teachers may take it and at what level.
func (s *QualificationService) QualifiedTeachers(ctx context.Context, subjectID string) ([]models.TeacherSubject, error) {
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	quals, _, err := s.repo.List(ctx, models.QualificationFilter{SubjectID: subjectID, PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qualifications")
	}
	return quals, nil
}

// Matrix returns every qualification link grouped by teacher, the planning
// overview of who may take what.
func (s *QualificationService) Matrix(ctx context.Context) (map[string][]models.TeacherSubject, error) {
	quals, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualification matrix")
	}
	matrix := make(map[string][]models.TeacherSubject, len(quals))
	for _, qual := range quals {
		matrix[qual.TeacherID] = append(matrix[qual.TeacherID], qual)
	}
	return matrix, nil
}

// Create links a teacher to a subject. Each pair may exist only once.
func (s *QualificationService) Create(ctx context.Context, teacherID string, req CreateQualificationRequest) (*models.TeacherSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid qualification payload")
	}
	if req.CertificationDate != nil && req.CertificationExpires != nil && req.CertificationExpires.Before(*req.CertificationDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certification_expires precedes certification_date")
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	exists, err := s.repo.ExistsForPair(ctx, teacherID, req.SubjectID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check qualification pair")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher is already linked to this subject")
	}

	qual := &models.TeacherSubject{
		TeacherID:            teacherID,
		SubjectID:            req.SubjectID,
		Level:                models.QualificationLevel(req.Level),
		Grades:               models.GradeList(req.Grades),
		MaxHoursPerWeek:      req.MaxHoursPerWeek,
		CertificationDate:    req.CertificationDate,
		CertificationExpires: req.CertificationExpires,
	}
	if err := s.repo.Create(ctx, qual); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create qualification")
	}
	return qual, nil
}

// Update modifies a qualification link. The teacher and subject of a link
// never change; delete and recreate instead.
func (s *QualificationService) Update(ctx context.Context, id string, req UpdateQualificationRequest) (*models.TeacherSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid qualification payload")
	}

	qual, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "qualification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualification")
	}

	qual.Level = models.QualificationLevel(req.Level)
	qual.Grades = models.GradeList(req.Grades)
	qual.MaxHoursPerWeek = req.MaxHoursPerWeek
	qual.CertificationDate = req.CertificationDate
	qual.CertificationExpires = req.CertificationExpires

	if err := s.repo.Update(ctx, qual); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update qualification")
	}
	return qual, nil
}

// Delete removes a qualification link.
func (s *QualificationService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "qualification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualification")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete qualification")
	}
	return nil
}

// CanTeach checks whether a teacher may take a subject for a given grade on
// a given date. Substitute-level links are reported but never count as a
// regular assignment.
func (s *QualificationService) CanTeach(ctx context.Context, teacherID, subjectID string, grade int, date time.Time) (*TeachingCheck, error) {
	qual, err := s.repo.FindByPair(ctx, teacherID, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &TeachingCheck{Allowed: false, Reason: "no qualification for this subject"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualification")
	}

	check := &TeachingCheck{Level: qual.Level}
	switch {
	case qual.Level == models.QualificationSubstitute:
		check.Reason = "substitute-level qualification covers stand-ins only"
	case !qual.Grades.Contains(grade):
		check.Reason = "qualification does not cover this grade"
	case !qual.CertifiedAt(date):
		check.Reason = "certification has expired"
	default:
		check.Allowed = true
	}
	return check, nil
}
