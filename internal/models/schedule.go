package models

import "time"

// WeekType distinguishes alternating A/B week lessons from every-week lessons.
type WeekType string

const (
	WeekAll WeekType = "ALL"
	WeekA   WeekType = "A"
	WeekB   WeekType = "B"
)

// Valid reports whether the week type is a known value.
func (w WeekType) Valid() bool {
	switch w {
	case WeekAll, WeekA, WeekB:
		return true
	}
	return false
}

// Overlaps reports whether two week types can occur in the same calendar week.
func (w WeekType) Overlaps(other WeekType) bool {
	if w == WeekAll || other == WeekAll {
		return true
	}
	return w == other
}

// Schedule represents one lesson: a class taught a subject by a teacher in a slot.
type Schedule struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TimeSlotID string    `db:"timeslot_id" json:"timeslot_id"`
	Room       *string   `db:"room" json:"room,omitempty"`
	WeekType   WeekType  `db:"week_type" json:"week_type"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleDetail extends Schedule with joined display fields for week views.
type ScheduleDetail struct {
	Schedule
	ClassName   string `db:"class_name" json:"class_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	Day         int    `db:"day" json:"day"`
	Period      int    `db:"period" json:"period"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	ClassID    string
	TeacherID  string
	SubjectID  string
	TimeSlotID string
	WeekType   *WeekType
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ScheduleConflict describes an existing schedule that collides with a new one.
type ScheduleConflict struct {
	ScheduleID string `json:"schedule_id"`
	ClassID    string `json:"class_id"`
	TeacherID  string `json:"teacher_id"`
	SubjectID  string `json:"subject_id"`
	TimeSlotID string `json:"timeslot_id"`
	Dimension  string `json:"dimension"`
}

// Conflict dimensions.
const (
	ConflictTeacher = "teacher"
	ConflictClass   = "class"
	ConflictRoom    = "room"
)

// ScheduleConflictError is returned when a schedule collides with existing ones.
type ScheduleConflictError struct {
	Message string             `json:"message"`
	Errors  []ScheduleConflict `json:"errors"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
