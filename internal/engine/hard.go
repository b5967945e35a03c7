package engine

import (
	"github.com/crillab/gophersat/solver"

	"github.com/stundenplan/grundschule-api/internal/models"
)

// addSingleBookingConstraints limits every teacher and every class to at most
// one lesson per timeslot.
func addSingleBookingConstraints(bc *BuildContext) {
	for _, lits := range bc.litsByTeacherSlot() {
		if len(lits) > 1 {
			bc.addConstr(solver.AtMost(lits, 1))
		}
	}
	for _, lits := range bc.litsByClassSlot() {
		if len(lits) > 1 {
			bc.addConstr(solver.AtMost(lits, 1))
		}
	}
}

// addAvailabilityBlocking forces every variable of a (teacher, timeslot) pair
// to zero when the teacher carries a BLOCKED entry for that slot's weekday and
// period. Date-range filtering already happened when the snapshot was loaded,
// so every loaded BLOCKED entry counts.
func addAvailabilityBlocking(bc *BuildContext) {
	for _, slot := range bc.snap.TimeSlots {
		for _, teacher := range bc.snap.Teachers {
			key := availabilityKey{teacher.ID, slot.Weekday(), slot.Period}
			if bc.availabilities[key] != models.AvailabilityBlocked {
				continue
			}
			var lits []int
			for _, class := range bc.snap.Classes {
				for _, subject := range bc.snap.Subjects {
					if v, ok := bc.vars[VarKey{teacher.ID, class.ID, subject.ID, slot.ID}]; ok {
						lits = append(lits, v)
					}
				}
			}
			bc.forceAllFalse(lits)
		}
	}
}

// addPinnedAssignments forces every already-committed assignment to stay in
// the solution. Tuples outside the current variable space (e.g. filtered away
// by a partial scope) are skipped without error.
func addPinnedAssignments(bc *BuildContext, fixed []Assignment) int {
	pinned := 0
	for _, a := range fixed {
		key := VarKey{a.TeacherID, a.ClassID, a.SubjectID, a.TimeSlotID}
		if v, ok := bc.vars[key]; ok {
			bc.forceTrue(v)
			pinned++
		}
	}
	return pinned
}
