package engine

import (
	"github.com/crillab/gophersat/solver"

	"github.com/stundenplan/grundschule-api/internal/models"
)

// VarKey identifies one decision variable: this teacher teaches this subject
// to this class during this timeslot.
type VarKey struct {
	TeacherID  string
	ClassID    string
	SubjectID  string
	TimeSlotID string
}

type availabilityKey struct {
	TeacherID string
	Weekday   int
	Period    int
}

type qualificationKey struct {
	TeacherID string
	SubjectID string
}

// BuildContext holds the variable index, the accumulated pseudo-boolean
// constraints and the objective terms for a single solve. Constraint builders
// are package functions over the context, so each group can be tested in
// isolation against a hand-built snapshot.
type BuildContext struct {
	snap *Snapshot

	vars    map[VarKey]int
	keys    []VarKey
	nextVar int

	constrs []solver.PBConstr

	objLits    []int
	objWeights []int

	teacherByID    map[string]models.Teacher
	classByID      map[string]models.Class
	subjectByID    map[string]models.Subject
	slotByID       map[string]models.TimeSlot
	availabilities map[availabilityKey]models.AvailabilityType
	qualifications map[qualificationKey]models.TeacherSubject
}

// NewBuildContext indexes the snapshot and creates the pruned variable space.
// Variables exist only for eligible combinations: the teacher holds a PRIMARY
// or SECONDARY qualification for the subject, the qualification's grade list
// admits the class grade, and the certification is valid at snapshot time.
// Break slots never get variables.
func NewBuildContext(snap *Snapshot) *BuildContext {
	bc := &BuildContext{
		snap:           snap,
		vars:           make(map[VarKey]int),
		teacherByID:    make(map[string]models.Teacher, len(snap.Teachers)),
		classByID:      make(map[string]models.Class, len(snap.Classes)),
		subjectByID:    make(map[string]models.Subject, len(snap.Subjects)),
		slotByID:       make(map[string]models.TimeSlot, len(snap.TimeSlots)),
		availabilities: make(map[availabilityKey]models.AvailabilityType, len(snap.Availabilities)),
		qualifications: make(map[qualificationKey]models.TeacherSubject, len(snap.Qualifications)),
	}

	for _, t := range snap.Teachers {
		bc.teacherByID[t.ID] = t
	}
	for _, c := range snap.Classes {
		bc.classByID[c.ID] = c
	}
	for _, s := range snap.Subjects {
		bc.subjectByID[s.ID] = s
	}
	for _, ts := range snap.TimeSlots {
		bc.slotByID[ts.ID] = ts
	}
	for _, a := range snap.Availabilities {
		bc.availabilities[availabilityKey{a.TeacherID, a.Weekday, a.Period}] = a.Type
	}
	for _, q := range snap.Qualifications {
		bc.qualifications[qualificationKey{q.TeacherID, q.SubjectID}] = q
	}

	for _, t := range snap.Teachers {
		for _, s := range snap.Subjects {
			qual, ok := bc.qualifications[qualificationKey{t.ID, s.ID}]
			if !ok {
				continue
			}
			if qual.Level != models.QualificationPrimary && qual.Level != models.QualificationSecondary {
				continue
			}
			if !qual.CertifiedAt(snap.TakenAt) {
				continue
			}
			for _, c := range snap.Classes {
				if !qual.Grades.Contains(c.Grade) {
					continue
				}
				for _, slot := range snap.TimeSlots {
					if slot.IsBreak {
						continue
					}
					bc.nextVar++
					key := VarKey{t.ID, c.ID, s.ID, slot.ID}
					bc.vars[key] = bc.nextVar
					bc.keys = append(bc.keys, key)
				}
			}
		}
	}

	return bc
}

// Var returns the solver variable for the given tuple, if it exists.
func (bc *BuildContext) Var(key VarKey) (int, bool) {
	v, ok := bc.vars[key]
	return v, ok
}

// VarCount returns the number of decision variables (auxiliaries excluded).
func (bc *BuildContext) VarCount() int {
	return len(bc.keys)
}

// newAuxVar allocates a fresh auxiliary variable outside the decision index.
func (bc *BuildContext) newAuxVar() int {
	bc.nextVar++
	return bc.nextVar
}

func (bc *BuildContext) addConstr(c solver.PBConstr) {
	bc.constrs = append(bc.constrs, c)
}

func (bc *BuildContext) forceTrue(v int) {
	bc.addConstr(solver.AtLeast([]int{v}, 1))
}

func (bc *BuildContext) forceAllFalse(lits []int) {
	if len(lits) == 0 {
		return
	}
	bc.addConstr(solver.AtMost(lits, 0))
}

func (bc *BuildContext) addObjective(v, weight int) {
	bc.objLits = append(bc.objLits, v)
	bc.objWeights = append(bc.objWeights, weight)
}

// unsatisfiedWeight sums the weight of objective terms whose variable is
// false in the model. Variable v lives at model index v-1.
func (bc *BuildContext) unsatisfiedWeight(model []bool) int {
	cost := 0
	for i, v := range bc.objLits {
		if v-1 >= len(model) || !model[v-1] {
			cost += bc.objWeights[i]
		}
	}
	return cost
}

// totalObjectiveWeight is the value of an objective with every term satisfied.
func (bc *BuildContext) totalObjectiveWeight() int {
	total := 0
	for _, w := range bc.objWeights {
		total += w
	}
	return total
}

// litsByTeacherSlot groups decision variables by (teacher, timeslot).
func (bc *BuildContext) litsByTeacherSlot() map[[2]string][]int {
	out := make(map[[2]string][]int)
	for _, key := range bc.keys {
		k := [2]string{key.TeacherID, key.TimeSlotID}
		out[k] = append(out[k], bc.vars[key])
	}
	return out
}

// litsByClassSlot groups decision variables by (class, timeslot).
func (bc *BuildContext) litsByClassSlot() map[[2]string][]int {
	out := make(map[[2]string][]int)
	for _, key := range bc.keys {
		k := [2]string{key.ClassID, key.TimeSlotID}
		out[k] = append(out[k], bc.vars[key])
	}
	return out
}
