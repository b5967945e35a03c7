package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// QualificationLevel ranks how well a teacher is qualified for a subject.
type QualificationLevel string

const (
	QualificationPrimary    QualificationLevel = "PRIMARY"
	QualificationSecondary  QualificationLevel = "SECONDARY"
	QualificationSubstitute QualificationLevel = "SUBSTITUTE"
)

// Valid reports whether the level is a known value.
func (l QualificationLevel) Valid() bool {
	switch l {
	case QualificationPrimary, QualificationSecondary, QualificationSubstitute:
		return true
	}
	return false
}

// GradeList is a nullable JSON array of grade numbers stored in a jsonb column.
type GradeList []int

// Scan implements sql.Scanner.
func (g *GradeList) Scan(value interface{}) error {
	if value == nil {
		*g = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("grade list: unsupported type %T", value)
	}
	return json.Unmarshal(b, g)
}

// Value implements driver.Valuer.
func (g GradeList) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

// Contains reports whether the list allows the given grade.
// An empty or nil list places no restriction.
func (g GradeList) Contains(grade int) bool {
	if len(g) == 0 {
		return true
	}
	for _, v := range g {
		if v == grade {
			return true
		}
	}
	return false
}

// TeacherSubject links a teacher to a subject they may teach.
type TeacherSubject struct {
	ID                   string             `db:"id" json:"id"`
	TeacherID            string             `db:"teacher_id" json:"teacher_id"`
	SubjectID            string             `db:"subject_id" json:"subject_id"`
	Level                QualificationLevel `db:"qualification_level" json:"qualification_level"`
	Grades               GradeList          `db:"grades" json:"grades,omitempty"`
	MaxHoursPerWeek      *int               `db:"max_hours_per_week" json:"max_hours_per_week,omitempty"`
	CertificationDate    *time.Time         `db:"certification_date" json:"certification_date,omitempty"`
	CertificationExpires *time.Time         `db:"certification_expires" json:"certification_expires,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// CertifiedAt reports whether the certification is valid on the given date.
// A missing expiry never expires.
func (ts TeacherSubject) CertifiedAt(date time.Time) bool {
	if ts.CertificationExpires != nil && date.After(*ts.CertificationExpires) {
		return false
	}
	return true
}

// QualificationFilter captures filters for listing teacher-subject links.
type QualificationFilter struct {
	TeacherID string
	SubjectID string
	Level     *QualificationLevel
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
