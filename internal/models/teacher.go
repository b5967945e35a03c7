package models

import "time"

// DefaultMaxHoursPerWeek is the contractual full-time load used when none is set.
const DefaultMaxHoursPerWeek = 28

// Teacher represents an instructor record.
type Teacher struct {
	ID              string    `db:"id" json:"id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	Email           string    `db:"email" json:"email"`
	Abbreviation    string    `db:"abbreviation" json:"abbreviation"`
	MaxHoursPerWeek int       `db:"max_hours_per_week" json:"max_hours_per_week"`
	IsPartTime      bool      `db:"is_part_time" json:"is_part_time"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns the display name used in exports and week views.
func (t Teacher) FullName() string {
	return t.FirstName + " " + t.LastName
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search     string
	Active     *bool
	IsPartTime *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
