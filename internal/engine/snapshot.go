// Package engine builds and solves the weekly timetable as a pseudo-boolean
// optimization problem. One Solve call loads a fresh snapshot, constructs the
// variable space and constraints, runs the solver under a time budget and
// scores the extracted solution. The engine keeps no state across calls.
package engine

import (
	"context"
	"time"

	"github.com/stundenplan/grundschule-api/internal/models"
)

// Scope narrows a snapshot for partial generation. Empty slices mean "all".
type Scope struct {
	ClassIDs   []string
	SubjectIDs []string
	Days       []int
}

// IsZero reports whether the scope places no restriction.
func (s Scope) IsZero() bool {
	return len(s.ClassIDs) == 0 && len(s.SubjectIDs) == 0 && len(s.Days) == 0
}

// Snapshot is the frozen input of one solve. TimeSlots never contain break
// periods and availability entries are already filtered to the ones effective
// at TakenAt; both are the loader's responsibility.
type Snapshot struct {
	TakenAt        time.Time
	Teachers       []models.Teacher
	Classes        []models.Class
	Subjects       []models.Subject
	TimeSlots      []models.TimeSlot
	Availabilities []models.TeacherAvailability
	Qualifications []models.TeacherSubject
}

// Loader produces a fresh snapshot per solve. Implementations must be
// side-effect free and callable repeatedly.
type Loader interface {
	Load(ctx context.Context, scope Scope) (*Snapshot, error)
}
