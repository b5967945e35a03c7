package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stundenplan/grundschule-api/internal/models"
)

func TestBuildContextCreatesOnlyQualifiedVariables(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers = append(snap.Teachers, fullTimeTeacher("t2", 20))
	// t2 has no qualification for s1, so no variables for t2.

	bc := NewBuildContext(snap)

	assert.Equal(t, 1, bc.VarCount())
	_, ok := bc.Var(VarKey{"t2", "c1", "s1", "ts1"})
	assert.False(t, ok)
}

func TestBuildContextExcludesSubstituteLevel(t *testing.T) {
	snap := minimalSnapshot()
	snap.Qualifications[0].Level = models.QualificationSubstitute

	bc := NewBuildContext(snap)

	assert.Equal(t, 0, bc.VarCount())
}

func TestBuildContextSkipsBreakSlots(t *testing.T) {
	snap := minimalSnapshot()
	snap.TimeSlots = append(snap.TimeSlots, models.TimeSlot{ID: "pause", Day: 1, Period: 2, IsBreak: true})

	bc := NewBuildContext(snap)

	require.Equal(t, 1, bc.VarCount())
	_, ok := bc.Var(VarKey{"t1", "c1", "s1", "pause"})
	assert.False(t, ok)
}

func TestBuildContextGradeRestriction(t *testing.T) {
	snap := minimalSnapshot()
	snap.Classes = append(snap.Classes, models.Class{ID: "c3", Name: "3a", Grade: 3, Size: 20})
	snap.Qualifications[0].Grades = models.GradeList{1, 2}

	bc := NewBuildContext(snap)

	_, ok := bc.Var(VarKey{"t1", "c1", "s1", "ts1"})
	assert.True(t, ok)
	_, ok = bc.Var(VarKey{"t1", "c3", "s1", "ts1"})
	assert.False(t, ok)
}

func TestBuildContextExpiredCertification(t *testing.T) {
	snap := minimalSnapshot()
	expired := snap.TakenAt.Add(-24 * time.Hour)
	snap.Qualifications[0].CertificationExpires = &expired

	bc := NewBuildContext(snap)

	assert.Equal(t, 0, bc.VarCount())
}

func TestBuildContextAuxVarsOutsideDecisionIndex(t *testing.T) {
	bc := NewBuildContext(minimalSnapshot())

	aux := bc.newAuxVar()
	assert.Equal(t, bc.VarCount()+1, aux)
	assert.Equal(t, 1, bc.VarCount())
}
