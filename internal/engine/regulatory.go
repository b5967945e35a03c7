package engine

import (
	"sort"

	"github.com/crillab/gophersat/solver"
)

const (
	// maxDailyHours is the full-time teaching cap per day. Part-time staff
	// get the integer half.
	maxDailyHours = 6
	// maxPartTimeDays caps the number of working days for part-time staff.
	maxPartTimeDays = 3
)

// addDailyHourCaps limits how many lessons a teacher may give per day.
func addDailyHourCaps(bc *BuildContext) {
	for _, teacher := range bc.snap.Teachers {
		limit := maxDailyHours
		if teacher.IsPartTime {
			limit = maxDailyHours / 2
		}
		for _, lits := range bc.teacherLitsByDay(teacher.ID) {
			if len(lits) > limit {
				bc.addConstr(solver.AtMost(lits, limit))
			}
		}
	}
}

// addWeeklyHourCaps bounds every teacher's week by their contractual hours.
func addWeeklyHourCaps(bc *BuildContext) {
	byTeacher := make(map[string][]int)
	for _, key := range bc.keys {
		byTeacher[key.TeacherID] = append(byTeacher[key.TeacherID], bc.vars[key])
	}
	for _, teacher := range bc.snap.Teachers {
		lits := byTeacher[teacher.ID]
		if len(lits) > teacher.MaxHoursPerWeek {
			bc.addConstr(solver.AtMost(lits, teacher.MaxHoursPerWeek))
		}
	}
}

// addSubjectHourCaps enforces the optional per-subject weekly cap carried on
// a qualification record.
func addSubjectHourCaps(bc *BuildContext) {
	byPair := make(map[qualificationKey][]int)
	for _, key := range bc.keys {
		k := qualificationKey{key.TeacherID, key.SubjectID}
		byPair[k] = append(byPair[k], bc.vars[key])
	}
	for pair, lits := range byPair {
		qual, ok := bc.qualifications[pair]
		if !ok || qual.MaxHoursPerWeek == nil {
			continue
		}
		if len(lits) > *qual.MaxHoursPerWeek {
			bc.addConstr(solver.AtMost(lits, *qual.MaxHoursPerWeek))
		}
	}
}

// addPartTimeDayLimits restricts part-time teachers to at most three working
// days. One auxiliary variable per day is linked to the day's assignments:
// any assignment on the day forces the auxiliary true, and the auxiliary can
// only be true when the day carries at least one assignment.
func addPartTimeDayLimits(bc *BuildContext) {
	for _, teacher := range bc.snap.Teachers {
		if !teacher.IsPartTime {
			continue
		}
		byDay := bc.teacherLitsByDay(teacher.ID)
		if len(byDay) <= maxPartTimeDays {
			continue
		}

		days := make([]int, 0, len(byDay))
		for day := range byDay {
			days = append(days, day)
		}
		sort.Ints(days)

		dayVars := make([]int, 0, len(days))
		for _, day := range days {
			lits := byDay[day]
			aux := bc.newAuxVar()
			for _, v := range lits {
				bc.addConstr(solver.AtLeast([]int{-v, aux}, 1))
			}
			clause := make([]int, 0, len(lits)+1)
			clause = append(clause, -aux)
			clause = append(clause, lits...)
			bc.addConstr(solver.AtLeast(clause, 1))
			dayVars = append(dayVars, aux)
		}
		bc.addConstr(solver.AtMost(dayVars, maxPartTimeDays))
	}
}

// addConsecutiveSubjectCaps prevents three lessons of the same subject in a
// row for a class. Within each day's period-sorted slots, every window of
// three consecutive slots may carry at most two lessons of one subject.
func addConsecutiveSubjectCaps(bc *BuildContext) {
	slotsByDay := make(map[int][]int)
	for i, slot := range bc.snap.TimeSlots {
		slotsByDay[slot.Day] = append(slotsByDay[slot.Day], i)
	}
	for day := range slotsByDay {
		idx := slotsByDay[day]
		sort.Slice(idx, func(a, b int) bool {
			return bc.snap.TimeSlots[idx[a]].Period < bc.snap.TimeSlots[idx[b]].Period
		})
	}

	for _, class := range bc.snap.Classes {
		for _, subject := range bc.snap.Subjects {
			for _, idx := range slotsByDay {
				for start := 0; start+2 < len(idx); start++ {
					var window []int
					for offset := 0; offset < 3; offset++ {
						slot := bc.snap.TimeSlots[idx[start+offset]]
						for _, teacher := range bc.snap.Teachers {
							if v, ok := bc.vars[VarKey{teacher.ID, class.ID, subject.ID, slot.ID}]; ok {
								window = append(window, v)
							}
						}
					}
					if len(window) > 2 {
						bc.addConstr(solver.AtMost(window, 2))
					}
				}
			}
		}
	}
}

// teacherLitsByDay groups one teacher's decision variables by school day.
func (bc *BuildContext) teacherLitsByDay(teacherID string) map[int][]int {
	out := make(map[int][]int)
	for _, key := range bc.keys {
		if key.TeacherID != teacherID {
			continue
		}
		slot := bc.slotByID[key.TimeSlotID]
		out[slot.Day] = append(out[slot.Day], bc.vars[key])
	}
	return out
}

// addRoomCapacityConstraints is a contract hook. Rooms are assigned in a
// separate post-processing step, so the base engine leaves it empty.
func addRoomCapacityConstraints(bc *BuildContext, roomCapacities map[string]int) {
	_ = bc
	_ = roomCapacities
}

// addSpecialRoomConstraints is a contract hook, see addRoomCapacityConstraints.
func addSpecialRoomConstraints(bc *BuildContext, subjectRooms map[string][]string) {
	_ = bc
	_ = subjectRooms
}

// addTeacherPreferenceConstraints is a contract hook. PREFERRED slots already
// flow into the objective, hard preference rules stay out of the base engine.
func addTeacherPreferenceConstraints(bc *BuildContext, preferences map[string]map[string]float64) {
	_ = bc
	_ = preferences
}
