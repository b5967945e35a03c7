package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stundenplan/grundschule-api/internal/models"
)

const timeslotColumns = "id, day, period, start_time, end_time, is_break, created_at, updated_at"

// TimeSlotRepository manages persistence for the weekly period grid.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs a TimeSlotRepository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// List returns timeslots matching filters along with total count.
func (r *TimeSlotRepository) List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, int, error) {
	base := "FROM timeslots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Day != nil {
		conditions = append(conditions, fmt.Sprintf("day = $%d", len(args)+1))
		args = append(args, *filter.Day)
	}
	if filter.IsBreak != nil {
		conditions = append(conditions, fmt.Sprintf("is_break = $%d", len(args)+1))
		args = append(args, *filter.IsBreak)
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
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY day %s, period %s LIMIT %d OFFSET %d", timeslotColumns, base, order, order, size, offset)
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timeslots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timeslots: %w", err)
	}

	return slots, total, nil
}

// ListTeaching returns the non-break slots, optionally narrowed to days.
// Used for snapshot loading.
func (r *TimeSlotRepository) ListTeaching(ctx context.Context, days []int) ([]models.TimeSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM timeslots WHERE is_break = FALSE", timeslotColumns)
	var args []interface{}
	if len(days) > 0 {
		in, inArgs, err := sqlx.In(query+" AND day IN (?)", days)
		if err != nil {
			return nil, fmt.Errorf("build timeslot filter: %w", err)
		}
		query = r.db.Rebind(in)
		args = inArgs
	}
	query += " ORDER BY day, period"

	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list teaching timeslots: %w", err)
	}
	return slots, nil
}

// FindByID fetches a timeslot by ID.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM timeslots WHERE id = $1", timeslotColumns)
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create inserts a new timeslot record.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO timeslots (id, day, period, start_time, end_time, is_break, created_at, updated_at)
		VALUES (:id, :day, :period, :start_time, :end_time, :is_break, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create timeslot: %w", err)
	}
	return nil
}

// Update modifies an existing timeslot record.
func (r *TimeSlotRepository) Update(ctx context.Context, slot *models.TimeSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timeslots SET day = :day, period = :period, start_time = :start_time, end_time = :end_time, is_break = :is_break, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update timeslot: %w", err)
	}
	return nil
}

// Delete removes a timeslot record.
func (r *TimeSlotRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timeslots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timeslot: %w", err)
	}
	return nil
}

// CountAll returns the number of existing slots, used by the grid seeder.
func (r *TimeSlotRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timeslots`); err != nil {
		return 0, fmt.Errorf("count timeslots: %w", err)
	}
	return total, nil
}
