package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stundenplan/grundschule-api/internal/engine"
)

// SnapshotRepository assembles the engine's read-only input from the six
// entity tables. It implements engine.Loader.
type SnapshotRepository struct {
	teachers       *TeacherRepository
	classes        *ClassRepository
	subjects       *SubjectRepository
	timeslots      *TimeSlotRepository
	availabilities *AvailabilityRepository
	qualifications *TeacherSubjectRepository
}

// NewSnapshotRepository constructs a SnapshotRepository over one database.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{
		teachers:       NewTeacherRepository(db),
		classes:        NewClassRepository(db),
		subjects:       NewSubjectRepository(db),
		timeslots:      NewTimeSlotRepository(db),
		availabilities: NewAvailabilityRepository(db),
		qualifications: NewTeacherSubjectRepository(db),
	}
}

// Load reads a fresh snapshot. Break slots are excluded at the query level
// and availability entries are restricted to the ones effective now, so the
// engine can treat every loaded BLOCKED entry as active.
func (r *SnapshotRepository) Load(ctx context.Context, scope engine.Scope) (*engine.Snapshot, error) {
	takenAt := time.Now().UTC()

	teachers, err := r.teachers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot teachers: %w", err)
	}
	classes, err := r.classes.ListByIDs(ctx, scope.ClassIDs)
	if err != nil {
		return nil, fmt.Errorf("snapshot classes: %w", err)
	}
	subjects, err := r.subjects.ListByIDs(ctx, scope.SubjectIDs)
	if err != nil {
		return nil, fmt.Errorf("snapshot subjects: %w", err)
	}
	timeslots, err := r.timeslots.ListTeaching(ctx, scope.Days)
	if err != nil {
		return nil, fmt.Errorf("snapshot timeslots: %w", err)
	}
	availabilities, err := r.availabilities.ListEffectiveAt(ctx, takenAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot availabilities: %w", err)
	}
	qualifications, err := r.qualifications.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot qualifications: %w", err)
	}

	return &engine.Snapshot{
		TakenAt:        takenAt,
		Teachers:       teachers,
		Classes:        classes,
		Subjects:       subjects,
		TimeSlots:      timeslots,
		Availabilities: availabilities,
		Qualifications: qualifications,
	}, nil
}
