package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stundenplan/grundschule-api/internal/models"
)

type stubLoader struct {
	snap *Snapshot
	err  error
}

func (s *stubLoader) Load(_ context.Context, _ Scope) (*Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func fullTimeTeacher(id string, maxHours int) models.Teacher {
	return models.Teacher{ID: id, FirstName: "Anna", LastName: "Becker", MaxHoursPerWeek: maxHours}
}

func primaryQualification(teacherID, subjectID string) models.TeacherSubject {
	return models.TeacherSubject{
		ID:        teacherID + "-" + subjectID,
		TeacherID: teacherID,
		SubjectID: subjectID,
		Level:     models.QualificationPrimary,
	}
}

func slot(id string, day, period int) models.TimeSlot {
	return models.TimeSlot{ID: id, Day: day, Period: period}
}

func minimalSnapshot() *Snapshot {
	return &Snapshot{
		TakenAt:        time.Now(),
		Teachers:       []models.Teacher{fullTimeTeacher("t1", 20)},
		Classes:        []models.Class{{ID: "c1", Name: "1a", Grade: 1, Size: 22}},
		Subjects:       []models.Subject{{ID: "s1", Name: "Deutsch", Code: "DE", Category: models.SubjectCore}},
		TimeSlots:      []models.TimeSlot{slot("ts1", 1, 1)},
		Qualifications: []models.TeacherSubject{primaryQualification("t1", "s1")},
	}
}

func solve(t *testing.T, snap *Snapshot, req Request) *Solution {
	t.Helper()
	eng := New(&stubLoader{snap: snap})
	sol, err := eng.Solve(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, sol)
	return sol
}

func TestSolveMinimalFeasible(t *testing.T) {
	sol := solve(t, minimalSnapshot(), Request{TimeLimit: 5 * time.Second})

	assert.True(t, sol.IsFeasible())
	require.Equal(t, 1, sol.ScheduleCount())
	a := sol.Assignments[0]
	assert.Equal(t, "t1", a.TeacherID)
	assert.Equal(t, "c1", a.ClassID)
	assert.Equal(t, "s1", a.SubjectID)
	assert.Equal(t, "ts1", a.TimeSlotID)
	assert.Equal(t, models.WeekAll, a.WeekType)
	assert.Greater(t, sol.QualityScore, 0.0)
	assert.LessOrEqual(t, sol.QualityScore, 100.0)
}

func TestSolveEmptySnapshot(t *testing.T) {
	sol := solve(t, &Snapshot{TakenAt: time.Now()}, Request{TimeLimit: time.Second})

	assert.False(t, sol.IsFeasible())
	assert.Equal(t, 0, sol.ScheduleCount())
	assert.Equal(t, 0.0, sol.QualityScore)
	assert.Equal(t, []string{"No feasible solution found"}, sol.ViolatedConstraints)
}

func TestSolveLoaderError(t *testing.T) {
	eng := New(&stubLoader{err: errors.New("db down")})
	sol, err := eng.Solve(context.Background(), Request{})

	assert.Error(t, err)
	assert.Nil(t, sol)
}

func TestSolveFullyBlockedTeacherGetsNothing(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers = append(snap.Teachers, fullTimeTeacher("t2", 20))
	snap.Qualifications = append(snap.Qualifications, primaryQualification("t2", "s1"))
	snap.TimeSlots = []models.TimeSlot{slot("ts1", 1, 1), slot("ts2", 1, 2)}
	for _, ts := range snap.TimeSlots {
		snap.Availabilities = append(snap.Availabilities, models.TeacherAvailability{
			TeacherID: "t2",
			Weekday:   ts.Weekday(),
			Period:    ts.Period,
			Type:      models.AvailabilityBlocked,
		})
	}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	for _, a := range sol.Assignments {
		assert.NotEqual(t, "t2", a.TeacherID)
	}
}

func TestSolveWithoutQualifications(t *testing.T) {
	snap := minimalSnapshot()
	snap.Qualifications = nil

	sol := solve(t, snap, Request{TimeLimit: time.Second})

	assert.Equal(t, 0, sol.ScheduleCount())
}

func TestSolvePinnedAssignmentPreserved(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers = append(snap.Teachers, fullTimeTeacher("t2", 20))
	snap.Qualifications = append(snap.Qualifications, primaryQualification("t2", "s1"))

	pin := Assignment{TeacherID: "t2", ClassID: "c1", SubjectID: "s1", TimeSlotID: "ts1", WeekType: models.WeekAll}
	sol := solve(t, snap, Request{Fixed: []Assignment{pin}, TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	assert.Contains(t, sol.Assignments, pin)
}

func TestSolvePinOutsideScopeIgnored(t *testing.T) {
	snap := minimalSnapshot()
	pin := Assignment{TeacherID: "ghost", ClassID: "c1", SubjectID: "s1", TimeSlotID: "ts1"}

	sol := solve(t, snap, Request{Fixed: []Assignment{pin}, TimeLimit: 5 * time.Second})

	assert.True(t, sol.IsFeasible())
	assert.Equal(t, 1, sol.ScheduleCount())
}

func TestSolveSingleBookingInvariant(t *testing.T) {
	snap := minimalSnapshot()
	snap.Subjects = append(snap.Subjects, models.Subject{ID: "s2", Name: "Mathematik", Code: "MA", Category: models.SubjectCore})
	snap.Qualifications = append(snap.Qualifications, primaryQualification("t1", "s2"))
	snap.TimeSlots = []models.TimeSlot{slot("ts1", 1, 1), slot("ts2", 1, 2)}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	teacherSlots := make(map[string]int)
	classSlots := make(map[string]int)
	for _, a := range sol.Assignments {
		teacherSlots[a.TeacherID+"|"+a.TimeSlotID]++
		classSlots[a.ClassID+"|"+a.TimeSlotID]++
	}
	for _, n := range teacherSlots {
		assert.LessOrEqual(t, n, 1)
	}
	for _, n := range classSlots {
		assert.LessOrEqual(t, n, 1)
	}
}

func TestSolveWeeklyHourCap(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers[0].MaxHoursPerWeek = 2
	snap.TimeSlots = []models.TimeSlot{
		slot("ts1", 1, 1), slot("ts2", 1, 2), slot("ts3", 2, 1),
		slot("ts4", 2, 2), slot("ts5", 3, 1),
	}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	assert.LessOrEqual(t, sol.ScheduleCount(), 2)
}

func TestSolvePartTimeDailyCap(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers[0].IsPartTime = true
	snap.TimeSlots = []models.TimeSlot{
		slot("ts1", 1, 1), slot("ts2", 1, 2), slot("ts3", 1, 3),
		slot("ts4", 1, 4), slot("ts5", 1, 5),
	}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	// Half of the full-time daily cap of six.
	assert.LessOrEqual(t, sol.ScheduleCount(), 3)
}

func TestSolvePartTimeDayCountLimit(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers[0].IsPartTime = true
	snap.TimeSlots = []models.TimeSlot{
		slot("ts1", 1, 1), slot("ts2", 2, 1), slot("ts3", 3, 1),
		slot("ts4", 4, 1), slot("ts5", 5, 1),
	}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	days := make(map[string]struct{})
	for _, a := range sol.Assignments {
		days[a.TimeSlotID] = struct{}{}
	}
	assert.LessOrEqual(t, len(days), 3)
}

func TestSolveNoThreeInARow(t *testing.T) {
	snap := minimalSnapshot()
	snap.TimeSlots = []models.TimeSlot{
		slot("ts1", 1, 1), slot("ts2", 1, 2), slot("ts3", 1, 3), slot("ts4", 1, 4),
	}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	periods := make(map[int]bool)
	for _, a := range sol.Assignments {
		for _, ts := range snap.TimeSlots {
			if ts.ID == a.TimeSlotID {
				periods[ts.Period] = true
			}
		}
	}
	for start := 1; start <= 2; start++ {
		if periods[start] && periods[start+1] && periods[start+2] {
			t.Fatalf("three consecutive lessons of the same subject starting at period %d", start)
		}
	}
}

func TestSolveDefaultsTimeLimit(t *testing.T) {
	sol := solve(t, minimalSnapshot(), Request{})

	assert.True(t, sol.IsFeasible())
	assert.Greater(t, sol.GenerationTime, time.Duration(0))
}

func TestExtractAssignmentsIndexesModelByVariable(t *testing.T) {
	snap := minimalSnapshot()
	snap.TimeSlots = []models.TimeSlot{slot("ts1", 1, 1), slot("ts2", 1, 2)}
	bc := NewBuildContext(snap)
	require.Equal(t, 2, bc.VarCount())

	// Variable 2 is true, stored at model index 1.
	got := extractAssignments(bc, []bool{false, true})

	require.Len(t, got, 1)
	assert.Equal(t, bc.keys[1], VarKey{
		TeacherID:  got[0].TeacherID,
		ClassID:    got[0].ClassID,
		SubjectID:  got[0].SubjectID,
		TimeSlotID: got[0].TimeSlotID,
	})
}

func TestRunSolverObjectiveOnlyVariable(t *testing.T) {
	// A variable that appears in the objective but in no constraint must
	// still be registered with the solver and end up true.
	bc := NewBuildContext(&Snapshot{TakenAt: time.Now()})
	v := bc.newAuxVar()
	bc.addObjective(v, 5)

	eng := New(&stubLoader{})
	model, cost, found := eng.runSolver(context.Background(), bc, time.Second)

	require.True(t, found)
	assert.Equal(t, 0, cost)
	require.GreaterOrEqual(t, len(model), v)
	assert.True(t, model[v-1])
}

func TestSolveHonorsTimeLimit(t *testing.T) {
	snap := minimalSnapshot()
	snap.Teachers = append(snap.Teachers, fullTimeTeacher("t2", 20))
	snap.Qualifications = append(snap.Qualifications, primaryQualification("t2", "s1"))
	for day := 1; day <= 5; day++ {
		for period := 1; period <= 6; period++ {
			if day == 1 && period == 1 {
				continue
			}
			id := "d" + string(rune('0'+day)) + "p" + string(rune('0'+period))
			snap.TimeSlots = append(snap.TimeSlots, slot(id, day, period))
		}
	}

	start := time.Now()
	sol := solve(t, snap, Request{TimeLimit: 50 * time.Millisecond})

	require.NotNil(t, sol)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSolveObjectivePrefersAvailableSlot(t *testing.T) {
	snap := minimalSnapshot()
	snap.TimeSlots = []models.TimeSlot{slot("ts1", 1, 1), slot("ts2", 2, 1)}
	snap.Teachers[0].MaxHoursPerWeek = 1
	snap.Availabilities = []models.TeacherAvailability{{
		TeacherID: "t1", Weekday: 1, Period: 1, Type: models.AvailabilityAvailable,
	}}

	sol := solve(t, snap, Request{TimeLimit: 5 * time.Second})

	require.True(t, sol.IsFeasible())
	require.Equal(t, 1, sol.ScheduleCount())
	assert.Equal(t, "ts2", sol.Assignments[0].TimeSlotID)
	assert.GreaterOrEqual(t, sol.ObjectiveValue, weightAvailableSlot)
}
