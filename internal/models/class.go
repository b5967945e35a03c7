package models

import "time"

// Class grade bounds for a primary school.
const (
	MinGrade = 1
	MaxGrade = 4
)

// Class represents a class of pupils, e.g. "3b".
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Grade     int       `db:"grade" json:"grade"`
	Size      int       `db:"size" json:"size"`
	HomeRoom  *string   `db:"home_room" json:"home_room,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Grade     *int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
