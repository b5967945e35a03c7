package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stundenplan/grundschule-api/internal/models"
)

const teacherSubjectColumns = "id, teacher_id, subject_id, qualification_level, grades, max_hours_per_week, certification_date, certification_expires, created_at, updated_at"

// TeacherSubjectRepository manages persistence for teacher qualifications.
type TeacherSubjectRepository struct {
	db *sqlx.DB
}

// NewTeacherSubjectRepository constructs a TeacherSubjectRepository.
func NewTeacherSubjectRepository(db *sqlx.DB) *TeacherSubjectRepository {
	return &TeacherSubjectRepository{db: db}
}

// List returns qualifications matching filters along with total count.
func (r *TeacherSubjectRepository) List(ctx context.Context, filter models.QualificationFilter) ([]models.TeacherSubject, int, error) {
	base := "FROM teacher_subjects WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Level != nil {
		conditions = append(conditions, fmt.Sprintf("qualification_level = $%d", len(args)+1))
		args = append(args, string(*filter.Level))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY teacher_id, subject_id LIMIT %d OFFSET %d", teacherSubjectColumns, base, size, offset)
	var quals []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &quals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list qualifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count qualifications: %w", err)
	}

	return quals, total, nil
}

// ListAll returns every qualification record, used for snapshot loading.
func (r *TeacherSubjectRepository) ListAll(ctx context.Context) ([]models.TeacherSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM teacher_subjects ORDER BY teacher_id, subject_id", teacherSubjectColumns)
	var quals []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &quals, query); err != nil {
		return nil, fmt.Errorf("list all qualifications: %w", err)
	}
	return quals, nil
}

// FindByID fetches a qualification by ID.
func (r *TeacherSubjectRepository) FindByID(ctx context.Context, id string) (*models.TeacherSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM teacher_subjects WHERE id = $1", teacherSubjectColumns)
	var qual models.TeacherSubject
	if err := r.db.GetContext(ctx, &qual, query, id); err != nil {
		return nil, err
	}
	return &qual, nil
}

// FindByPair fetches the qualification linking a teacher and a subject.
func (r *TeacherSubjectRepository) FindByPair(ctx context.Context, teacherID, subjectID string) (*models.TeacherSubject, error) {
	query := fmt.Sprintf("SELECT %s FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2", teacherSubjectColumns)
	var qual models.TeacherSubject
	if err := r.db.GetContext(ctx, &qual, query, teacherID, subjectID); err != nil {
		return nil, err
	}
	return &qual, nil
}

// ExistsForPair checks whether the (teacher, subject) link already exists.
func (r *TeacherSubjectRepository) ExistsForPair(ctx context.Context, teacherID, subjectID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2"
	args := []interface{}{teacherID, subjectID}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check qualification pair: %w", err)
	}
	return true, nil
}

// Create inserts a new qualification record.
func (r *TeacherSubjectRepository) Create(ctx context.Context, qual *models.TeacherSubject) error {
	if qual.ID == "" {
		qual.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if qual.CreatedAt.IsZero() {
		qual.CreatedAt = now
	}
	qual.UpdatedAt = now

	const query = `INSERT INTO teacher_subjects (id, teacher_id, subject_id, qualification_level, grades, max_hours_per_week, certification_date, certification_expires, created_at, updated_at)
		VALUES (:id, :teacher_id, :subject_id, :qualification_level, :grades, :max_hours_per_week, :certification_date, :certification_expires, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, qual); err != nil {
		return fmt.Errorf("create qualification: %w", err)
	}
	return nil
}

// Update modifies an existing qualification record.
func (r *TeacherSubjectRepository) Update(ctx context.Context, qual *models.TeacherSubject) error {
	qual.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teacher_subjects SET qualification_level = :qualification_level, grades = :grades, max_hours_per_week = :max_hours_per_week, certification_date = :certification_date, certification_expires = :certification_expires, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, qual); err != nil {
		return fmt.Errorf("update qualification: %w", err)
	}
	return nil
}

// Delete removes a qualification record.
func (r *TeacherSubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete qualification: %w", err)
	}
	return nil
}
