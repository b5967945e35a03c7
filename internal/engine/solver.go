package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/crillab/gophersat/solver"
	"go.uber.org/zap"

	"github.com/stundenplan/grundschule-api/internal/models"
)

// DefaultTimeLimit applies when a request carries no explicit budget.
const DefaultTimeLimit = 60 * time.Second

// Constraint labels reported on the solution.
const (
	labelAllHardSatisfied = "All hard constraints satisfied"
	labelNoSolution       = "No feasible solution found"
)

// Assignment is one proposed lesson. Room stays unset, rooms are assigned in
// a later post-processing step.
type Assignment struct {
	TeacherID  string          `json:"teacher_id"`
	ClassID    string          `json:"class_id"`
	SubjectID  string          `json:"subject_id"`
	TimeSlotID string          `json:"timeslot_id"`
	WeekType   models.WeekType `json:"week_type"`
}

// Solution is the engine's output value object.
type Solution struct {
	Assignments          []Assignment  `json:"assignments"`
	QualityScore         float64       `json:"quality_score"`
	ObjectiveValue       int           `json:"objective_value"`
	GenerationTime       time.Duration `json:"generation_time"`
	SatisfiedConstraints []string      `json:"satisfied_constraints"`
	ViolatedConstraints  []string      `json:"violated_constraints"`
}

// IsFeasible reports whether the solve produced a usable timetable.
func (s *Solution) IsFeasible() bool {
	return len(s.ViolatedConstraints) == 0
}

// ScheduleCount returns the number of proposed lessons.
func (s *Solution) ScheduleCount() int {
	return len(s.Assignments)
}

// Request describes one solve.
type Request struct {
	Scope     Scope
	Fixed     []Assignment
	TimeLimit time.Duration
}

// Engine turns a domain snapshot into a solved weekly timetable.
type Engine struct {
	loader Loader
	terms  []ObjectiveTerm
	logger *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithObjectiveTerms replaces the default preference blend.
func WithObjectiveTerms(terms []ObjectiveTerm) Option {
	return func(e *Engine) { e.terms = terms }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine reading its input through the given loader.
func New(loader Loader, opts ...Option) *Engine {
	e := &Engine{
		loader: loader,
		terms:  DefaultObjectiveTerms(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Solve loads a fresh snapshot, builds the model and runs the solver under
// the request's wall-clock budget. Infeasibility is a normal outcome carried
// in the solution, not an error; errors are reserved for loader failures.
func (e *Engine) Solve(ctx context.Context, req Request) (*Solution, error) {
	start := time.Now()

	limit := req.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}

	snap, err := e.loader.Load(ctx, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	bc := NewBuildContext(snap)
	if bc.VarCount() == 0 {
		e.logger.Warn("empty variable space, nothing to schedule",
			zap.Int("teachers", len(snap.Teachers)),
			zap.Int("classes", len(snap.Classes)),
			zap.Int("timeslots", len(snap.TimeSlots)))
		return infeasibleSolution(start), nil
	}

	pinned := addPinnedAssignments(bc, req.Fixed)
	addSingleBookingConstraints(bc)
	addAvailabilityBlocking(bc)
	addDailyHourCaps(bc)
	addWeeklyHourCaps(bc)
	addSubjectHourCaps(bc)
	addPartTimeDayLimits(bc)
	addConsecutiveSubjectCaps(bc)
	addRoomCapacityConstraints(bc, nil)
	addSpecialRoomConstraints(bc, nil)
	addTeacherPreferenceConstraints(bc, nil)
	for _, term := range e.terms {
		term(bc)
	}

	e.logger.Debug("model built",
		zap.Int("variables", bc.VarCount()),
		zap.Int("constraints", len(bc.constrs)),
		zap.Int("objective_terms", len(bc.objLits)),
		zap.Int("pinned", pinned))

	model, weight, found := e.runSolver(ctx, bc, limit)
	if !found {
		return infeasibleSolution(start), nil
	}

	assignments := extractAssignments(bc, model)
	sol := &Solution{
		Assignments:          assignments,
		QualityScore:         scoreSolution(bc, assignments),
		ObjectiveValue:       bc.totalObjectiveWeight() - weight,
		GenerationTime:       time.Since(start),
		SatisfiedConstraints: []string{labelAllHardSatisfied},
		ViolatedConstraints:  []string{},
	}

	e.logger.Info("timetable solved",
		zap.Int("assignments", sol.ScheduleCount()),
		zap.Float64("quality_score", sol.QualityScore),
		zap.Int("objective_value", sol.ObjectiveValue),
		zap.Duration("generation_time", sol.GenerationTime))

	return sol, nil
}

// runSolver searches for the best feasible timetable under the wall-clock
// budget. Each round solves a plain decision problem, scores the model
// against the objective terms and then demands a strictly better satisfied
// weight from the next round, so a timeout still yields the best model found
// so far. The returned weight is the cost of unsatisfied objective terms.
func (e *Engine) runSolver(ctx context.Context, bc *BuildContext, limit time.Duration) ([]bool, int, bool) {
	// ParsePBConstrs sizes the variable space from the literals it sees.
	// Objective-only and auxiliary variables must still be mentioned
	// somewhere, a tautology over the highest variable covers them all.
	base := make([]solver.PBConstr, 0, len(bc.constrs)+1)
	base = append(base, bc.constrs...)
	if bc.nextVar > 0 {
		base = append(base, solver.AtLeast([]int{bc.nextVar, -bc.nextVar}, 1))
	}

	// One decision variable can carry several objective terms, the bound
	// constraint needs a single coalesced weight per literal.
	weightByVar := make(map[int]int, len(bc.objLits))
	order := make([]int, 0, len(bc.objLits))
	for i, v := range bc.objLits {
		if _, seen := weightByVar[v]; !seen {
			order = append(order, v)
		}
		weightByVar[v] += bc.objWeights[i]
	}

	timer := time.NewTimer(limit)
	defer timer.Stop()

	var (
		bestModel []bool
		bestCost  int
		found     bool
	)

	constrs := base
	for {
		s := solver.New(solver.ParsePBConstrs(constrs))
		s.Verbose = false

		statusCh := make(chan solver.Status, 1)
		go func() { statusCh <- s.Solve() }()

		var status solver.Status
		select {
		case status = <-statusCh:
		case <-timer.C:
			return bestModel, bestCost, found
		case <-ctx.Done():
			return bestModel, bestCost, found
		}
		if status != solver.Sat {
			return bestModel, bestCost, found
		}

		model := s.Model()
		bestModel = model
		bestCost = bc.unsatisfiedWeight(model)
		found = true
		if bestCost == 0 {
			return bestModel, bestCost, found
		}

		satisfied := bc.totalObjectiveWeight() - bestCost
		lits := make([]int, len(order))
		weights := make([]int, len(order))
		for i, v := range order {
			lits[i] = v
			weights[i] = weightByVar[v]
		}
		constrs = append(base[:len(base):len(base)], solver.GtEq(lits, weights, satisfied+1))
	}
}

// extractAssignments reads every true decision variable out of the model.
// Variable i+1 is stored at model index i.
func extractAssignments(bc *BuildContext, model []bool) []Assignment {
	assignments := make([]Assignment, 0, len(bc.keys))
	for i, key := range bc.keys {
		if i < len(model) && model[i] {
			assignments = append(assignments, Assignment{
				TeacherID:  key.TeacherID,
				ClassID:    key.ClassID,
				SubjectID:  key.SubjectID,
				TimeSlotID: key.TimeSlotID,
				WeekType:   models.WeekAll,
			})
		}
	}
	return assignments
}

func infeasibleSolution(start time.Time) *Solution {
	return &Solution{
		Assignments:          []Assignment{},
		QualityScore:         0,
		ObjectiveValue:       0,
		GenerationTime:       time.Since(start),
		SatisfiedConstraints: []string{},
		ViolatedConstraints:  []string{labelNoSolution},
	}
}
