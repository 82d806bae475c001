package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

const curriculumJobType = "curriculum"

type schedulerPlanReader interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.PlanFilter) ([]models.Plan, error)
}

type schedulerPlacementReader interface {
	ListByScope(ctx context.Context, exec sqlx.ExtContext, scope models.Scope) ([]models.TimetableEntryDetail, error)
}

type placementWriter interface {
	Assign(ctx context.Context, req dto.AssignTimetableRequest) (*models.TimetableEntryDetail, error)
	Unassign(ctx context.Context, planID int64) ([]int64, error)
}

// AutoSchedulerConfig tunes the placement search and the async run queue.
type AutoSchedulerConfig struct {
	Enabled       bool
	MinGapPeriods int
	RelaxGap      bool
	Workers       int
	Retries       int
	RunTTL        time.Duration
}

// AutoSchedulerService searches conflict-free placements for unplaced subjects.
// Every accepted candidate goes through the placement writer, one call at a time.
type AutoSchedulerService struct {
	plans      schedulerPlanReader
	placements schedulerPlacementReader
	writer     placementWriter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        AutoSchedulerConfig
	runs       *runStore
	queue      *jobs.Queue
}

// NewAutoSchedulerService wires the automatic scheduler.
func NewAutoSchedulerService(plans schedulerPlanReader, placements schedulerPlacementReader, writer placementWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AutoSchedulerConfig) *AutoSchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinGapPeriods < 0 {
		cfg.MinGapPeriods = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 24 * time.Hour
	}
	svc := &AutoSchedulerService{
		plans:      plans,
		placements: placements,
		writer:     writer,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		runs:       newRunStore(cfg.RunTTL),
	}
	svc.queue = jobs.NewQueue("auto-scheduler", svc.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return svc
}

// Start launches the async run workers.
func (s *AutoSchedulerService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts the async run workers.
func (s *AutoSchedulerService) Stop() {
	s.queue.Stop()
}

// ScheduleScope places every unplaced subject of one scope.
func (s *AutoSchedulerService) ScheduleScope(ctx context.Context, req dto.AutoScheduleScopeRequest) (*dto.ScopeScheduleResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-schedule payload")
	}
	if !req.PlanType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown plan type")
	}
	scope := models.Scope{TermYear: req.TermYear, YearLevel: req.YearLevel, PlanType: req.PlanType}
	return s.scheduleScope(ctx, scope, req.PlanIDs)
}

// ScheduleCurriculum runs the scope search over every year level of every track.
func (s *AutoSchedulerService) ScheduleCurriculum(ctx context.Context, req dto.AutoScheduleCurriculumRequest) (*dto.AutoScheduleResponse, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	tracks, err := s.curriculum(req.TermYear, req.Tracks)
	if err != nil {
		return nil, err
	}

	resp := &dto.AutoScheduleResponse{Scopes: []dto.ScopeScheduleResult{}}
	for _, scope := range models.ExpandScopes(req.TermYear, tracks) {
		result, err := s.scheduleScope(ctx, scope, nil)
		if err != nil {
			return nil, err
		}
		resp.Scopes = append(resp.Scopes, *result)
		resp.Placed += result.Placed
		resp.Failed += result.Failed
	}
	s.logger.Info("curriculum auto-schedule finished", zap.String("term_year", req.TermYear), zap.Int("placed", resp.Placed), zap.Int("failed", resp.Failed))
	return resp, nil
}

// ClearCurriculum removes every placement of the curriculum, including linked siblings.
// DVE-MSIX scopes are cleared after their DVE-LVC counterparts.
func (s *AutoSchedulerService) ClearCurriculum(ctx context.Context, req dto.ClearCurriculumRequest) (*dto.ClearCurriculumResponse, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	tracks, err := s.curriculum(req.TermYear, req.Tracks)
	if err != nil {
		return nil, err
	}

	scopes := models.ExpandScopes(req.TermYear, tracks)
	scopes = append(scopes, mirrorScopes(scopes)...)

	resp := &dto.ClearCurriculumResponse{Scopes: []dto.ClearScopeResult{}}
	removed := make(map[int64]struct{})
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := s.placements.ListByScope(ctx, nil, scope)
		if err != nil {
			return nil, appErrors.Storage(err, "failed to list placements")
		}
		result := dto.ClearScopeResult{Scope: scope}
		for _, entry := range entries {
			if _, ok := removed[entry.PlanID]; ok {
				continue
			}
			ids, err := s.writer.Unassign(ctx, entry.PlanID)
			if err != nil {
				if appErrors.IsCode(err, appErrors.ErrNotFound.Code) {
					continue
				}
				return nil, err
			}
			for _, id := range ids {
				if _, ok := removed[id]; !ok {
					removed[id] = struct{}{}
					result.Cleared++
				}
			}
		}
		resp.Scopes = append(resp.Scopes, result)
		resp.Cleared += result.Cleared
	}
	s.logger.Info("curriculum cleared", zap.String("term_year", req.TermYear), zap.Int("cleared", resp.Cleared))
	return resp, nil
}

// EnqueueCurriculum schedules a curriculum run in the background and returns its handle.
func (s *AutoSchedulerService) EnqueueCurriculum(ctx context.Context, req dto.AutoScheduleCurriculumRequest) (*dto.SchedulerRun, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}
	tracks, err := s.curriculum(req.TermYear, req.Tracks)
	if err != nil {
		return nil, err
	}
	req.Tracks = tracks

	run := dto.SchedulerRun{ID: uuid.NewString(), Status: dto.SchedulerRunQueued, Request: req, SubmittedAt: time.Now().UTC()}
	s.runs.Save(run)
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: curriculumJobType, Payload: req}); err != nil {
		s.runs.Delete(run.ID)
		return nil, appErrors.Wrap(err, "SCHEDULER_BUSY", http.StatusServiceUnavailable, "scheduler queue unavailable")
	}
	s.logger.Info("curriculum run queued", zap.String("run_id", run.ID), zap.String("term_year", req.TermYear))
	return &run, nil
}

// GetRun returns the state of an async curriculum run.
func (s *AutoSchedulerService) GetRun(id string) (*dto.SchedulerRun, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduler run not found")
	}
	return &run, nil
}

func (s *AutoSchedulerService) handleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.AutoScheduleCurriculumRequest)
	if !ok {
		s.runs.Finish(job.ID, nil, fmt.Errorf("unexpected payload %T", job.Payload))
		return nil
	}
	s.runs.Mark(job.ID, dto.SchedulerRunRunning)
	result, err := s.ScheduleCurriculum(ctx, req)
	s.runs.Finish(job.ID, result, err)
	return err
}

func (s *AutoSchedulerService) scheduleScope(ctx context.Context, scope models.Scope, only []int64) (*dto.ScopeScheduleResult, error) {
	plans, err := s.plans.List(ctx, nil, models.PlanFilter{TermYear: scope.TermYear, YearLevel: scope.YearLevel, PlanType: scope.PlanType})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load subjects")
	}
	entries, err := s.placements.ListByScope(ctx, nil, scope)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load placements")
	}

	board := newScopeBoard()
	placed := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		placed[e.PlanID] = struct{}{}
		board.add(e.Range())
	}

	wanted := make(map[int64]struct{}, len(only))
	for _, id := range only {
		wanted[id] = struct{}{}
	}
	var pending []models.Plan
	for _, p := range plans {
		if _, ok := placed[p.ID]; ok {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[p.ID]; !ok {
				continue
			}
		}
		pending = append(pending, p)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].TotalPeriods() > pending[j].TotalPeriods()
	})

	result := &dto.ScopeScheduleResult{Scope: scope}
	for _, plan := range pending {
		total := plan.TotalPeriods()
		if total == 0 {
			result.Skipped++
			s.metrics.RecordScheduleOutcome(ScheduleResultSkipped)
			continue
		}

		slot, reason, err := s.search(ctx, plan, board, s.cfg.MinGapPeriods)
		if err != nil {
			return nil, err
		}
		relaxed := false
		if slot == nil && s.cfg.RelaxGap && s.cfg.MinGapPeriods > 0 {
			slot, reason, err = s.search(ctx, plan, board, 0)
			if err != nil {
				return nil, err
			}
			relaxed = slot != nil
		}

		if slot == nil {
			result.Failed++
			result.Failures = append(result.Failures, dto.PlacementFailure{PlanID: plan.ID, SubjectCode: plan.SubjectCode, Periods: total, Reason: reason})
			s.metrics.RecordScheduleOutcome(ScheduleResultFailed)
			s.logger.Info("auto-schedule left subject unplaced", zap.String("scope", scope.String()), zap.Int64("plan_id", plan.ID), zap.String("reason", reason))
			continue
		}

		board.add(*slot)
		result.Placed++
		s.logger.Debug("auto-schedule placed subject", zap.Int64("plan_id", plan.ID), zap.Int("day", slot.Day), zap.Int("start_period", slot.Start), zap.Int("periods", slot.Len()))
		if relaxed {
			result.Relaxed = append(result.Relaxed, plan.ID)
			s.metrics.RecordScheduleOutcome(ScheduleResultRelaxed)
		} else {
			s.metrics.RecordScheduleOutcome(ScheduleResultPlaced)
		}
	}

	s.logger.Info("scope auto-scheduled", zap.String("scope", scope.String()), zap.Int("placed", result.Placed), zap.Int("failed", result.Failed), zap.Int("skipped", result.Skipped))
	return result, nil
}

// search walks the candidates in grid order and returns the first one that keeps
// minGap free periods around every placement on the day and that the writer accepts.
// Only context cancellation is returned as an error.
func (s *AutoSchedulerService) search(ctx context.Context, plan models.Plan, board *scopeBoard, minGap int) (*timegrid.Range, string, error) {
	rejected := 0
	for _, cand := range timegrid.Candidates(plan.TotalPeriods()) {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if !board.fits(cand, minGap) {
			continue
		}

		day, start, end := cand.Day, cand.Start, cand.End
		_, err := s.writer.Assign(ctx, dto.AssignTimetableRequest{
			PlanID:      plan.ID,
			TermYear:    plan.TermYear,
			YearLevel:   plan.YearLevel,
			PlanType:    plan.PlanType,
			Day:         &day,
			StartPeriod: &start,
			EndPeriod:   &end,
		})
		if err == nil {
			slot := cand
			return &slot, "", nil
		}
		if appErrors.IsCode(err, appErrors.ErrConflict.Code) {
			rejected++
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		s.logger.Warn("auto-schedule placement failed", zap.Int64("plan_id", plan.ID), zap.Error(err))
		return nil, err.Error(), nil
	}
	if rejected > 0 {
		return nil, fmt.Sprintf("no free slot: %d candidate(s) rejected by conflicts", rejected), nil
	}
	return nil, "no free slot", nil
}

func (s *AutoSchedulerService) curriculum(termYear string, tracks []models.CurriculumTrack) ([]models.CurriculumTrack, error) {
	if termYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "termYear is required")
	}
	if len(tracks) == 0 {
		return models.DefaultCurriculum(), nil
	}
	for _, t := range tracks {
		if err := s.validator.Struct(t); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid curriculum track")
		}
		if !t.PlanType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown plan type")
		}
	}
	return tracks, nil
}

func (s *AutoSchedulerService) ensureEnabled() error {
	if !s.cfg.Enabled {
		return appErrors.Clone(appErrors.ErrDisabled, "automatic scheduling is disabled")
	}
	return nil
}

// mirrorScopes returns the DVE-MSIX scopes matching DVE-LVC scopes that are not listed yet.
func mirrorScopes(scopes []models.Scope) []models.Scope {
	listed := make(map[models.Scope]struct{}, len(scopes))
	for _, sc := range scopes {
		listed[sc] = struct{}{}
	}
	var out []models.Scope
	for _, sc := range scopes {
		if sc.PlanType != models.PlanTypeDVELVC {
			continue
		}
		mirror := models.Scope{TermYear: sc.TermYear, YearLevel: sc.YearLevel, PlanType: models.PlanTypeDVEMSIX}
		if _, ok := listed[mirror]; ok {
			continue
		}
		listed[mirror] = struct{}{}
		out = append(out, mirror)
	}
	return out
}

// scopeBoard tracks the ranges occupied in one scope during a run.
type scopeBoard struct {
	days map[int][]timegrid.Range
}

func newScopeBoard() *scopeBoard {
	return &scopeBoard{days: make(map[int][]timegrid.Range)}
}

func (b *scopeBoard) add(r timegrid.Range) {
	b.days[r.Day] = append(b.days[r.Day], r)
}

func (b *scopeBoard) fits(cand timegrid.Range, minGap int) bool {
	for _, r := range b.days[cand.Day] {
		gap := timegrid.Gap(cand.Start, cand.End, r.Start, r.End)
		if gap < 0 || gap < minGap {
			return false
		}
	}
	return true
}

type runStore struct {
	ttl  time.Duration
	mu   sync.RWMutex
	runs map[string]dto.SchedulerRun
}

func newRunStore(ttl time.Duration) *runStore {
	return &runStore{ttl: ttl, runs: make(map[string]dto.SchedulerRun)}
}

func (s *runStore) Save(run dto.SchedulerRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.runs[run.ID] = run
}

func (s *runStore) Get(id string) (dto.SchedulerRun, bool) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return dto.SchedulerRun{}, false
	}
	if time.Since(run.SubmittedAt) > s.ttl {
		s.Delete(id)
		return dto.SchedulerRun{}, false
	}
	return run, true
}

func (s *runStore) Mark(id string, status dto.SchedulerRunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		run.Status = status
		s.runs[id] = run
	}
}

func (s *runStore) Finish(id string, result *dto.AutoScheduleResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Result = result
	if err != nil {
		run.Status = dto.SchedulerRunFailed
		run.Error = err.Error()
	} else {
		run.Status = dto.SchedulerRunCompleted
		run.Error = ""
	}
	s.runs[id] = run
}

func (s *runStore) Delete(id string) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
}

// prune drops expired runs; callers hold the write lock.
func (s *runStore) prune() {
	for id, run := range s.runs {
		if time.Since(run.SubmittedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}
