package engine

import "github.com/stundenplan/grundschule-api/internal/models"

// Scorer factor weights. They express relative importance, each factor is
// normalized by its own achievable maximum so the blend stays scale-invariant.
const (
	factorAvailability  = 0.25
	factorQualification = 0.20
	factorTiming        = 0.20
	factorWorkload      = 0.15
	factorEfficiency    = 0.10
	factorCompliance    = 0.10
)

// scoreSolution rates an extracted timetable 0-100 across six weighted
// factors, independent of the solver's internal objective. Empty solutions
// score 0.
func scoreSolution(bc *BuildContext, assignments []Assignment) float64 {
	if len(assignments) == 0 {
		return 0
	}

	total, achievable := 0.0, 0.0

	s, m := availabilityScore(bc, assignments)
	total += s * factorAvailability
	achievable += m * factorAvailability

	s, m = qualificationScore(bc, assignments)
	total += s * factorQualification
	achievable += m * factorQualification

	s, m = timingScore(bc, assignments)
	total += s * factorTiming
	achievable += m * factorTiming

	s, m = workloadScore(bc, assignments)
	total += s * factorWorkload
	achievable += m * factorWorkload

	s, m = efficiencyScore(bc, assignments)
	total += s * factorEfficiency
	achievable += m * factorEfficiency

	s, m = complianceScore(bc, assignments)
	total += s * factorCompliance
	achievable += m * factorCompliance

	if achievable <= 0 {
		return 0
	}
	score := total / achievable * 100
	if score > 100 {
		return 100
	}
	return score
}

// availabilityScore gives full credit for AVAILABLE slots, half for slots
// without an availability entry and nothing for the rest.
func availabilityScore(bc *BuildContext, assignments []Assignment) (float64, float64) {
	score, max := 0.0, 0.0
	for _, a := range assignments {
		slot, ok := bc.slotByID[a.TimeSlotID]
		if !ok {
			continue
		}
		max++
		avail, found := bc.availabilities[availabilityKey{a.TeacherID, slot.Weekday(), slot.Period}]
		switch {
		case avail == models.AvailabilityAvailable:
			score++
		case !found:
			score += 0.5
		}
	}
	return score, max
}

func qualificationScore(bc *BuildContext, assignments []Assignment) (float64, float64) {
	score := 0.0
	for _, a := range assignments {
		qual, ok := bc.qualifications[qualificationKey{a.TeacherID, a.SubjectID}]
		if !ok {
			continue
		}
		switch qual.Level {
		case models.QualificationPrimary:
			score += 1.0
		case models.QualificationSecondary:
			score += 0.7
		case models.QualificationSubstitute:
			score += 0.3
		}
	}
	return score, float64(len(assignments))
}

// timingScore rewards core subjects in the morning and sport after it.
func timingScore(bc *BuildContext, assignments []Assignment) (float64, float64) {
	score, max := 0.0, 0.0
	for _, a := range assignments {
		slot, ok := bc.slotByID[a.TimeSlotID]
		if !ok {
			continue
		}
		max++
		switch bc.subjectByID[a.SubjectID].Category {
		case models.SubjectCore:
			switch {
			case slot.Period <= 3:
				score += 1.0
			case slot.Period <= 5:
				score += 0.5
			}
		case models.SubjectPhysical:
			if slot.Period >= 4 {
				score += 1.0
			} else {
				score += 0.3
			}
		default:
			score += 0.7
		}
	}
	return score, max
}

// workloadScore rates every teacher's weekly lesson count against the
// 8-15 lessons sweet spot for a primary school.
func workloadScore(bc *BuildContext, assignments []Assignment) (float64, float64) {
	counts := make(map[string]int)
	for _, a := range assignments {
		counts[a.TeacherID]++
	}

	score := 0.0
	for _, t := range bc.snap.Teachers {
		n := counts[t.ID]
		switch {
		case n >= 8 && n <= 15:
			score += 1.0
		case n >= 5 && n <= 20:
			score += 0.7
		case n > 0:
			score += 0.3
		}
	}
	return score, float64(len(bc.snap.Teachers))
}

// efficiencyScore prefers each class's lessons spread across the week.
func efficiencyScore(bc *BuildContext, assignments []Assignment) (float64, float64) {
	daysByClass := make(map[string]map[int]struct{})
	for _, a := range assignments {
		slot, ok := bc.slotByID[a.TimeSlotID]
		if !ok {
			continue
		}
		if daysByClass[a.ClassID] == nil {
			daysByClass[a.ClassID] = make(map[int]struct{})
		}
		daysByClass[a.ClassID][slot.Day] = struct{}{}
	}

	score := 0.0
	for _, days := range daysByClass {
		switch {
		case len(days) >= 4:
			score += 1.0
		case len(days) >= 3:
			score += 0.7
		case len(days) >= 2:
			score += 0.4
		}
	}
	return score, float64(len(bc.snap.Classes))
}

// complianceScore deducts a tenth per break-period or weekly-cap violation.
// Hard constraints should prevent both, the factor guards the blend anyway.
func complianceScore(bc *BuildContext, assignments []Assignment) (float64, float64) {
	violations := 0
	for _, a := range assignments {
		if slot, ok := bc.slotByID[a.TimeSlotID]; ok && slot.IsBreak {
			violations++
		}
	}

	hours := make(map[string]int)
	for _, a := range assignments {
		hours[a.TeacherID]++
	}
	for _, t := range bc.snap.Teachers {
		if hours[t.ID] > t.MaxHoursPerWeek {
			violations++
		}
	}

	score := 1.0 - 0.1*float64(violations)
	if score < 0 {
		score = 0
	}
	return score, 1.0
}
