package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stundenplan/grundschule-api/internal/engine"
	"github.com/stundenplan/grundschule-api/internal/models"
	"github.com/stundenplan/grundschule-api/pkg/config"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
	"github.com/stundenplan/grundschule-api/pkg/jobs"
)

// Generation modes decide what happens to lessons already on the board.
const (
	ModePreserve = "preserve"
	ModeClear    = "clear"
	ModePartial  = "partial"
)

// Run statuses.
const (
	RunPending   = "PENDING"
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
)

type timetableSolver interface {
	Solve(ctx context.Context, req engine.Request) (*engine.Solution, error)
}

type timetableScheduleStore interface {
	ListAll(ctx context.Context) ([]models.Schedule, error)
	CreateBatch(ctx context.Context, schedules []models.Schedule) (int, error)
	DeleteByScope(ctx context.Context, classIDs []string) (int, error)
}

type boardInvalidator interface {
	InvalidateAllBoards(ctx context.Context)
}

type generationMetrics interface {
	ObserveGeneration(duration time.Duration, feasible bool)
}

// runStore is the slice of the redis API the run store needs.
type runStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// GenerateRequest represents payload for a generation run.
type GenerateRequest struct {
	ClassIDs         []string `json:"class_ids" validate:"omitempty,dive,uuid"`
	SubjectIDs       []string `json:"subject_ids" validate:"omitempty,dive,uuid"`
	Days             []int    `json:"days" validate:"omitempty,dive,min=1,max=5"`
	Mode             string   `json:"mode" validate:"omitempty,oneof=preserve clear partial"`
	TimeLimitSeconds int      `json:"time_limit_seconds" validate:"omitempty,min=1"`
	Async            bool     `json:"async"`
}

// Run is one generation attempt, kept in Redis until its TTL expires or it
// gets committed.
type Run struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	Mode           string           `json:"mode"`
	Scope          engine.Scope     `json:"scope"`
	TimeLimit      time.Duration    `json:"time_limit"`
	Solution       *engine.Solution `json:"solution,omitempty"`
	Error          string           `json:"error,omitempty"`
	Committed      bool             `json:"committed"`
	CommittedCount int              `json:"committed_count"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// TimetableService orchestrates generation runs: it prepares the engine
// request, stores the proposal and commits accepted proposals to the board.
type TimetableService struct {
	solver    timetableSolver
	schedules timetableScheduleStore
	boards    boardInvalidator
	metrics   generationMetrics
	redis     runStore
	queue     *jobs.Queue
	cfg       config.SchedulerConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs a TimetableService. Call StartWorkers before
// accepting async runs.
func NewTimetableService(solver timetableSolver, schedules timetableScheduleStore, boards boardInvalidator, metrics generationMetrics, redisClient runStore, cfg config.SchedulerConfig, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TimetableService{
		solver:    solver,
		schedules: schedules,
		boards:    boards,
		metrics:   metrics,
		redis:     redisClient,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("timetable-generation", s.handleGenerationJob, jobs.QueueConfig{
		Workers: cfg.AsyncWorkers,
		Logger:  logger,
	})
	return s
}

// StartWorkers launches the async generation workers.
func (s *TimetableService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains the async generation workers.
func (s *TimetableService) StopWorkers() {
	s.queue.Stop()
}

// Generate starts a generation run. Synchronous runs return the finished run,
// async runs return immediately with status PENDING.
func (s *TimetableService) Generate(ctx context.Context, req GenerateRequest) (*Run, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "timetable generation is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	limit, err := s.resolveTimeLimit(req.TimeLimitSeconds)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = ModePreserve
	}

	run := &Run{
		ID:     uuid.NewString(),
		Status: RunPending,
		Mode:   mode,
		Scope: engine.Scope{
			ClassIDs:   req.ClassIDs,
			SubjectIDs: req.SubjectIDs,
			Days:       req.Days,
		},
		TimeLimit: limit,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.storeRun(ctx, run); err != nil {
		return nil, err
	}

	if req.Async {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: "generate", Payload: run.ID}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation run")
		}
		return run, nil
	}

	s.execute(ctx, run)
	return run, nil
}

// GetRun returns a stored run by id.
func (s *TimetableService) GetRun(ctx context.Context, runID string) (*Run, error) {
	return s.loadRun(ctx, runID)
}

// Commit writes a completed run's proposal onto the board. In clear mode the
// scoped lessons are wiped first; in every mode the batch insert skips cells
// already occupied, so committing twice cannot duplicate lessons.
func (s *TimetableService) Commit(ctx context.Context, runID string) (*Run, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("run is %s, only completed runs can be committed", run.Status))
	}
	if run.Solution == nil || !run.Solution.IsFeasible() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run has no feasible solution to commit")
	}
	if run.Committed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "run has already been committed")
	}

	if run.Mode == ModeClear {
		removed, err := s.schedules.DeleteByScope(ctx, run.Scope.ClassIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear scoped lessons")
		}
		s.logger.Info("cleared scoped lessons before commit", zap.String("run_id", run.ID), zap.Int("removed", removed))
	}

	rows := make([]models.Schedule, 0, len(run.Solution.Assignments))
	for _, a := range run.Solution.Assignments {
		rows = append(rows, models.Schedule{
			ClassID:    a.ClassID,
			TeacherID:  a.TeacherID,
			SubjectID:  a.SubjectID,
			TimeSlotID: a.TimeSlotID,
			WeekType:   a.WeekType,
		})
	}
	inserted, err := s.schedules.CreateBatch(ctx, rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit proposal")
	}

	run.Committed = true
	run.CommittedCount = inserted
	if err := s.storeRun(ctx, run); err != nil {
		return nil, err
	}
	if s.boards != nil {
		s.boards.InvalidateAllBoards(ctx)
	}

	s.logger.Info("generation run committed",
		zap.String("run_id", run.ID),
		zap.Int("proposed", len(rows)),
		zap.Int("inserted", inserted))
	return run, nil
}

// execute runs the engine for a run and stores the outcome.
func (s *TimetableService) execute(ctx context.Context, run *Run) {
	run.Status = RunRunning
	if err := s.storeRun(ctx, run); err != nil {
		s.logger.Warn("failed to store running state", zap.String("run_id", run.ID), zap.Error(err))
	}

	fixed, err := s.fixedAssignments(ctx, run)
	if err != nil {
		s.finishRun(ctx, run, nil, err)
		return
	}

	sol, err := s.solver.Solve(ctx, engine.Request{
		Scope:     run.Scope,
		Fixed:     fixed,
		TimeLimit: run.TimeLimit,
	})
	s.finishRun(ctx, run, sol, err)
}

// fixedAssignments pins existing lessons depending on the run mode. Clear
// mode starts from a blank board; preserve and partial keep what is there.
func (s *TimetableService) fixedAssignments(ctx context.Context, run *Run) ([]engine.Assignment, error) {
	if run.Mode == ModeClear {
		return nil, nil
	}
	existing, err := s.schedules.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing lessons: %w", err)
	}
	fixed := make([]engine.Assignment, 0, len(existing))
	for _, row := range existing {
		fixed = append(fixed, engine.Assignment{
			TeacherID:  row.TeacherID,
			ClassID:    row.ClassID,
			SubjectID:  row.SubjectID,
			TimeSlotID: row.TimeSlotID,
			WeekType:   row.WeekType,
		})
	}
	return fixed, nil
}

func (s *TimetableService) finishRun(ctx context.Context, run *Run, sol *engine.Solution, err error) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		s.logger.Error("generation run failed", zap.String("run_id", run.ID), zap.Error(err))
	} else {
		run.Status = RunCompleted
		run.Solution = sol
		if s.metrics != nil {
			s.metrics.ObserveGeneration(sol.GenerationTime, sol.IsFeasible())
		}
	}
	if storeErr := s.storeRun(ctx, run); storeErr != nil {
		s.logger.Error("failed to store run result", zap.String("run_id", run.ID), zap.Error(storeErr))
	}
}

func (s *TimetableService) handleGenerationJob(ctx context.Context, job jobs.Job) error {
	runID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != RunPending {
		// Retried job for a run that already executed.
		return nil
	}
	s.execute(ctx, run)
	return nil
}

// resolveTimeLimit clamps the requested budget into the configured window.
func (s *TimetableService) resolveTimeLimit(seconds int) (time.Duration, error) {
	if seconds == 0 {
		return s.cfg.DefaultTimeLimit, nil
	}
	limit := time.Duration(seconds) * time.Second
	if limit < s.cfg.MinTimeLimit || limit > s.cfg.MaxTimeLimit {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(
			"time limit must be between %d and %d seconds",
			int(s.cfg.MinTimeLimit.Seconds()), int(s.cfg.MaxTimeLimit.Seconds())))
	}
	return limit, nil
}

func (s *TimetableService) storeRun(ctx context.Context, run *Run) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run")
	}
	if err := s.redis.Set(ctx, runKey(run.ID), raw, s.cfg.RunTTL).Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store run")
	}
	return nil
}

func (s *TimetableService) loadRun(ctx context.Context, runID string) (*Run, error) {
	raw, err := s.redis.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation run not found or expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	var run Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode run")
	}
	return &run, nil
}

func runKey(id string) string {
	return fmt.Sprintf("run:%s", id)
}
