package models

import "time"

// SubjectCategory classifies subjects for placement rules and scoring.
type SubjectCategory string

const (
	// SubjectCore marks cognitively demanding subjects that belong in morning periods.
	SubjectCore SubjectCategory = "CORE"
	// SubjectPhysical marks sport and movement subjects preferred after the morning block.
	SubjectPhysical SubjectCategory = "PHYSICAL"
	// SubjectOther marks everything without a placement preference.
	SubjectOther SubjectCategory = "OTHER"
)

// Valid reports whether the category is one of the known values.
func (c SubjectCategory) Valid() bool {
	switch c {
	case SubjectCore, SubjectPhysical, SubjectOther:
		return true
	}
	return false
}

// Subject represents a taught subject.
type Subject struct {
	ID        string          `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Category  SubjectCategory `db:"category" json:"category"`
	Color     string          `db:"color" json:"color"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Category  *SubjectCategory
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
