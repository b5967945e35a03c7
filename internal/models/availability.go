package models

import "time"

// AvailabilityType describes how a teacher relates to a weekly period.
type AvailabilityType string

const (
	AvailabilityAvailable AvailabilityType = "AVAILABLE"
	AvailabilityBlocked   AvailabilityType = "BLOCKED"
	AvailabilityPreferred AvailabilityType = "PREFERRED"
)

// Valid reports whether the availability type is a known value.
func (t AvailabilityType) Valid() bool {
	switch t {
	case AvailabilityAvailable, AvailabilityBlocked, AvailabilityPreferred:
		return true
	}
	return false
}

// TeacherAvailability records a recurring weekly availability entry.
// Weekday is 0-based (Monday=0 .. Friday=4).
type TeacherAvailability struct {
	ID             string           `db:"id" json:"id"`
	TeacherID      string           `db:"teacher_id" json:"teacher_id"`
	Weekday        int              `db:"weekday" json:"weekday"`
	Period         int              `db:"period" json:"period"`
	Type           AvailabilityType `db:"availability_type" json:"availability_type"`
	EffectiveFrom  *time.Time       `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveUntil *time.Time       `db:"effective_until" json:"effective_until,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EffectiveAt reports whether the entry applies on the given date.
func (a TeacherAvailability) EffectiveAt(date time.Time) bool {
	if a.EffectiveFrom != nil && date.Before(*a.EffectiveFrom) {
		return false
	}
	if a.EffectiveUntil != nil && date.After(*a.EffectiveUntil) {
		return false
	}
	return true
}

// AvailabilityFilter captures filters for listing availability entries.
type AvailabilityFilter struct {
	TeacherID string
	Weekday   *int
	Type      *AvailabilityType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
