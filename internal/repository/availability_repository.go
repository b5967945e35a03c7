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

const availabilityColumns = "id, teacher_id, weekday, period, availability_type, effective_from, effective_until, created_at, updated_at"

// AvailabilityRepository manages persistence for teacher availability entries.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// List returns availability entries matching filters along with total count.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.TeacherAvailability, int, error) {
	base := "FROM teacher_availabilities WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Weekday != nil {
		conditions = append(conditions, fmt.Sprintf("weekday = $%d", len(args)+1))
		args = append(args, *filter.Weekday)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("availability_type = $%d", len(args)+1))
		args = append(args, string(*filter.Type))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY weekday %s, period %s LIMIT %d OFFSET %d", availabilityColumns, base, order, order, size, offset)
	var entries []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list availabilities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count availabilities: %w", err)
	}

	return entries, total, nil
}

// ListEffectiveAt returns every entry whose effective window covers the date.
// Used for snapshot loading.
func (r *AvailabilityRepository) ListEffectiveAt(ctx context.Context, date time.Time) ([]models.TeacherAvailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_availabilities
		WHERE (effective_from IS NULL OR effective_from <= $1)
		  AND (effective_until IS NULL OR effective_until >= $1)
		ORDER BY teacher_id, weekday, period`, availabilityColumns)
	var entries []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &entries, query, date); err != nil {
		return nil, fmt.Errorf("list effective availabilities: %w", err)
	}
	return entries, nil
}

// FindByID fetches an availability entry by ID.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.TeacherAvailability, error) {
	query := fmt.Sprintf("SELECT %s FROM teacher_availabilities WHERE id = $1", availabilityColumns)
	var entry models.TeacherAvailability
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ExistsForSlot checks if the teacher already has an entry for the same
// weekday, period and effective start.
func (r *AvailabilityRepository) ExistsForSlot(ctx context.Context, entry *models.TeacherAvailability, excludeID string) (bool, error) {
	query := `SELECT 1 FROM teacher_availabilities
		WHERE teacher_id = $1 AND weekday = $2 AND period = $3
		  AND effective_from IS NOT DISTINCT FROM $4`
	args := []interface{}{entry.TeacherID, entry.Weekday, entry.Period, entry.EffectiveFrom}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check availability slot: %w", err)
	}
	return true, nil
}

// Create inserts a new availability entry.
func (r *AvailabilityRepository) Create(ctx context.Context, entry *models.TeacherAvailability) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO teacher_availabilities (id, teacher_id, weekday, period, availability_type, effective_from, effective_until, created_at, updated_at)
		VALUES (:id, :teacher_id, :weekday, :period, :availability_type, :effective_from, :effective_until, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// Update modifies an existing availability entry.
func (r *AvailabilityRepository) Update(ctx context.Context, entry *models.TeacherAvailability) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teacher_availabilities SET weekday = :weekday, period = :period, availability_type = :availability_type, effective_from = :effective_from, effective_until = :effective_until, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// Delete removes an availability entry.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_availabilities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}
