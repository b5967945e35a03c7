package engine

import "github.com/stundenplan/grundschule-api/internal/models"

// Objective weights. The raw weighted sum over satisfied terms becomes the
// solution's objective value.
const (
	weightAvailableSlot     = 10
	weightPrimaryLevel      = 5
	weightCoreMorning       = 8
	weightPhysicalAfternoon = 3
)

// Morning block boundary: core subjects earn their bonus in periods 1-3,
// physical subjects from period 4 on.
const morningPeriods = 3

// An ObjectiveTerm contributes weighted soft-preference literals to the
// objective. Terms are pluggable so individual preferences can be switched
// on and off without touching the constraint builders.
type ObjectiveTerm func(bc *BuildContext)

// DefaultObjectiveTerms returns the standard preference blend.
func DefaultObjectiveTerms() []ObjectiveTerm {
	return []ObjectiveTerm{
		AvailabilityPreferenceTerm,
		PrimaryQualificationTerm,
		CoreMorningTerm,
		PhysicalAfternoonTerm,
	}
}

// AvailabilityPreferenceTerm rewards placing a lesson in a slot the teacher
// explicitly marked AVAILABLE.
func AvailabilityPreferenceTerm(bc *BuildContext) {
	for _, key := range bc.keys {
		slot := bc.slotByID[key.TimeSlotID]
		ak := availabilityKey{key.TeacherID, slot.Weekday(), slot.Period}
		if bc.availabilities[ak] == models.AvailabilityAvailable {
			bc.addObjective(bc.vars[key], weightAvailableSlot)
		}
	}
}

// PrimaryQualificationTerm rewards assigning a subject to a teacher holding
// the PRIMARY qualification for it.
func PrimaryQualificationTerm(bc *BuildContext) {
	for _, key := range bc.keys {
		qual := bc.qualifications[qualificationKey{key.TeacherID, key.SubjectID}]
		if qual.Level == models.QualificationPrimary {
			bc.addObjective(bc.vars[key], weightPrimaryLevel)
		}
	}
}

// CoreMorningTerm rewards core subjects placed in the morning block.
func CoreMorningTerm(bc *BuildContext) {
	for _, key := range bc.keys {
		if bc.subjectByID[key.SubjectID].Category != models.SubjectCore {
			continue
		}
		if bc.slotByID[key.TimeSlotID].Period <= morningPeriods {
			bc.addObjective(bc.vars[key], weightCoreMorning)
		}
	}
}

// PhysicalAfternoonTerm rewards sport lessons placed after the morning block.
func PhysicalAfternoonTerm(bc *BuildContext) {
	for _, key := range bc.keys {
		if bc.subjectByID[key.SubjectID].Category != models.SubjectPhysical {
			continue
		}
		if bc.slotByID[key.TimeSlotID].Period > morningPeriods {
			bc.addObjective(bc.vars[key], weightPhysicalAfternoon)
		}
	}
}

// TeacherGapTerm would penalize idle periods between a teacher's lessons.
// It is not part of DefaultObjectiveTerms because no weight has been agreed
// with the schools yet.
func TeacherGapTerm(bc *BuildContext) {
	_ = bc
}

// WorkloadBalanceTerm would reward an even lesson distribution across
// teachers. Not part of DefaultObjectiveTerms, see TeacherGapTerm.
func WorkloadBalanceTerm(bc *BuildContext) {
	_ = bc
}
