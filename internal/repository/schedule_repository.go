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

const scheduleColumns = "id, class_id, teacher_id, subject_id, timeslot_id, room, week_type, created_at, updated_at"

const scheduleDetailQuery = `SELECT s.id, s.class_id, s.teacher_id, s.subject_id, s.timeslot_id, s.room, s.week_type, s.created_at, s.updated_at,
		c.name AS class_name,
		t.first_name || ' ' || t.last_name AS teacher_name,
		sub.name AS subject_name,
		sub.code AS subject_code,
		ts.day AS day,
		ts.period AS period
	FROM schedules s
	JOIN classes c ON c.id = s.class_id
	JOIN teachers t ON t.id = s.teacher_id
	JOIN subjects sub ON sub.id = s.subject_id
	JOIN timeslots ts ON ts.id = s.timeslot_id`

// ScheduleRepository manages persistence for schedule rows.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules matching filters along with total count.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TimeSlotID != "" {
		conditions = append(conditions, fmt.Sprintf("timeslot_id = $%d", len(args)+1))
		args = append(args, filter.TimeSlotID)
	}
	if filter.WeekType != nil {
		conditions = append(conditions, fmt.Sprintf("week_type = $%d", len(args)+1))
		args = append(args, string(*filter.WeekType))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", scheduleColumns, base, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// ListAll returns every schedule row, used to pin existing lessons during
// generation.
func (r *ScheduleRepository) ListAll(ctx context.Context) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules ORDER BY created_at", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list all schedules: %w", err)
	}
	return schedules, nil
}

// FindByID fetches a schedule by ID.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListDetailsByClass returns the joined week view for a class.
func (r *ScheduleRepository) ListDetailsByClass(ctx context.Context, classID string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailQuery + " WHERE s.class_id = $1 ORDER BY ts.day, ts.period"
	var details []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &details, query, classID); err != nil {
		return nil, fmt.Errorf("list class week view: %w", err)
	}
	return details, nil
}

// ListDetailsByTeacher returns the joined week view for a teacher.
func (r *ScheduleRepository) ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailQuery + " WHERE s.teacher_id = $1 ORDER BY ts.day, ts.period"
	var details []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &details, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher week view: %w", err)
	}
	return details, nil
}

// ListDetailsByRoom returns the joined week view for a room.
func (r *ScheduleRepository) ListDetailsByRoom(ctx context.Context, room string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailQuery + " WHERE s.room = $1 ORDER BY ts.day, ts.period"
	var details []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &details, query, room); err != nil {
		return nil, fmt.Errorf("list room week view: %w", err)
	}
	return details, nil
}

// ListByTimeSlot returns every schedule occupying the timeslot.
func (r *ScheduleRepository) ListByTimeSlot(ctx context.Context, timeslotID string) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE timeslot_id = $1", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, timeslotID); err != nil {
		return nil, fmt.Errorf("list schedules by timeslot: %w", err)
	}
	return schedules, nil
}

// Create inserts a new schedule row.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, class_id, teacher_id, subject_id, timeslot_id, room, week_type, created_at, updated_at)
		VALUES (:id, :class_id, :teacher_id, :subject_id, :timeslot_id, :room, :week_type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// CreateBatch inserts schedule rows inside one transaction, skipping rows
// whose (class, timeslot, week_type) cell is already occupied. Returns the
// number of inserted rows.
func (r *ScheduleRepository) CreateBatch(ctx context.Context, schedules []models.Schedule) (int, error) {
	if len(schedules) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin schedule batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO schedules (id, class_id, teacher_id, subject_id, timeslot_id, room, week_type, created_at, updated_at)
		SELECT :id, :class_id, :teacher_id, :subject_id, :timeslot_id, :room, :week_type, :created_at, :updated_at
		WHERE NOT EXISTS (
			SELECT 1 FROM schedules
			WHERE class_id = :class_id AND timeslot_id = :timeslot_id AND week_type = :week_type
		)`

	inserted := 0
	now := time.Now().UTC()
	for i := range schedules {
		s := &schedules[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		s.UpdatedAt = now

		res, err := tx.NamedExecContext(ctx, insert, s)
		if err != nil {
			return 0, fmt.Errorf("insert schedule batch row: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit schedule batch: %w", err)
	}
	return inserted, nil
}

// Update modifies an existing schedule row.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET class_id = :class_id, teacher_id = :teacher_id, subject_id = :subject_id, timeslot_id = :timeslot_id, room = :room, week_type = :week_type, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule row.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// DeleteByScope removes every schedule row for the given classes, or all rows
// when the list is empty. Used by the clear generation mode.
func (r *ScheduleRepository) DeleteByScope(ctx context.Context, classIDs []string) (int, error) {
	query := "DELETE FROM schedules"
	var args []interface{}
	if len(classIDs) > 0 {
		in, inArgs, err := sqlx.In(query+" WHERE class_id IN (?)", classIDs)
		if err != nil {
			return 0, fmt.Errorf("build schedule scope filter: %w", err)
		}
		query = r.db.Rebind(in)
		args = inArgs
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete schedules by scope: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// FindConflicting returns rows sharing the timeslot with the candidate on any
// booking dimension and an overlapping week type.
func (r *ScheduleRepository) FindConflicting(ctx context.Context, candidate *models.Schedule) ([]models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules
		WHERE timeslot_id = $1
		  AND id <> $2
		  AND (teacher_id = $3 OR class_id = $4 OR (room IS NOT NULL AND room = $5))`, scheduleColumns)

	room := ""
	if candidate.Room != nil {
		room = *candidate.Room
	}

	var rows []models.Schedule
	err := r.db.SelectContext(ctx, &rows, query, candidate.TimeSlotID, candidate.ID, candidate.TeacherID, candidate.ClassID, room)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("find conflicting schedules: %w", err)
	}

	conflicts := rows[:0]
	for _, row := range rows {
		if row.WeekType.Overlaps(candidate.WeekType) {
			conflicts = append(conflicts, row)
		}
	}
	return conflicts, nil
}
