package models

import "time"

// School week bounds. Days run Monday=1 through Friday=5.
const (
	MinDay = 1
	MaxDay = 5
)

// TimeSlot represents one period in the weekly grid.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	Day       int       `db:"day" json:"day"`
	Period    int       `db:"period" json:"period"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	IsBreak   bool      `db:"is_break" json:"is_break"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Weekday converts the slot's 1-based school day to the 0-based weekday
// used by availability records (Monday=0 .. Friday=4).
func (s TimeSlot) Weekday() int {
	return s.Day - 1
}

// TimeSlotFilter captures filters for listing time slots.
type TimeSlotFilter struct {
	Day       *int
	IsBreak   *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
