package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

const (
	timetableCachePrefix  = "timetable:list:"
	timetableCachePattern = timetableCachePrefix + "*"
)

type timetablePlanReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Plan, error)
}

type timetableStore interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error)
	FindDetailByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.TimetableEntryDetail, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	DeleteByPlans(ctx context.Context, exec sqlx.ExtContext, planIDs []int64) (int64, error)
}

type siblingResolver interface {
	Siblings(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, LinkKind, error)
}

type conflictDetector interface {
	Detect(ctx context.Context, exec sqlx.ExtContext, plan models.Plan, candidate models.TimetableEntry) ([]models.ConflictReport, error)
}

// TimetableService places plans on the grid and keeps linked plans in step.
type TimetableService struct {
	plans     timetablePlanReader
	entries   timetableStore
	links     siblingResolver
	conflicts conflictDetector
	tx        txRunner
	cache     *CacheService
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs the placement writer.
func NewTimetableService(plans timetablePlanReader, entries timetableStore, links siblingResolver, conflicts conflictDetector, tx txRunner, cache *CacheService, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		plans:     plans,
		entries:   entries,
		links:     links,
		conflicts: conflicts,
		tx:        tx,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns placements matching the filter. An empty filter yields an empty list.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	entries, _, err := s.ListCached(ctx, filter)
	return entries, err
}

// ListCached is List that also reports whether the result came from the read cache.
func (s *TimetableService) ListCached(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, bool, error) {
	if filter.Empty() {
		return []models.TimetableEntryDetail{}, false, nil
	}
	if filter.PlanType != "" && !filter.PlanType.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown plan type")
	}

	key := timetableCacheKey(filter)
	var cached []models.TimetableEntryDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}

	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Storage(err, "failed to list timetable")
	}
	if entries == nil {
		entries = []models.TimetableEntryDetail{}
	}
	_ = s.cache.Set(ctx, key, entries, s.cacheTTL)
	return entries, false, nil
}

// Assign places a plan, replacing its previous placement, and copies the placement
// to its DVE mirror or co-teaching members. Nothing is written when a conflict is found.
func (s *TimetableService) Assign(ctx context.Context, req dto.AssignTimetableRequest) (*models.TimetableEntryDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if !req.PlanType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown plan type")
	}
	day, start, end := *req.Day, *req.StartPeriod, *req.EndPeriod
	if !timegrid.ValidDay(day) || !timegrid.ValidRange(start, end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period range must satisfy 0 <= startPeriod <= endPeriod <= 24")
	}
	if timegrid.InActivityBlock(day, start, end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "wednesday periods 14-17 are reserved for activities")
	}

	var (
		detail  *models.TimetableEntryDetail
		written []models.TimetableEntry
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		plan, err := loadPlan(ctx, s.plans, exec, req.PlanID)
		if err != nil {
			return err
		}
		if plan.Scope() != (models.Scope{TermYear: req.TermYear, YearLevel: req.YearLevel, PlanType: req.PlanType}) {
			return appErrors.Clone(appErrors.ErrValidation, "subject does not belong to the requested timetable")
		}
		if total := plan.TotalPeriods(); total > 0 && !timegrid.Fits(start, total) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject needs %d periods and does not fit before the end of the day", total))
		}

		candidate := models.TimetableEntry{
			PlanID:      plan.ID,
			TermYear:    plan.TermYear,
			YearLevel:   plan.YearLevel,
			PlanType:    plan.PlanType,
			Day:         day,
			StartPeriod: start,
			EndPeriod:   end,
			RoomID:      firstInt64(req.RoomID, plan.RoomID),
			TeacherID:   firstInt64(req.TeacherID, plan.TeacherID),
			Section:     firstString(req.Section, plan.Section),
		}

		siblings, kind, err := s.links.Siblings(ctx, exec, *plan)
		if err != nil {
			return err
		}
		if kind == LinkNone {
			reports, err := s.conflicts.Detect(ctx, exec, *plan, candidate)
			if err != nil {
				return err
			}
			if len(reports) > 0 {
				conflict := &models.TimetableConflictError{PlanID: plan.ID, Reports: reports}
				return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "placement conflicts with the existing timetable")
			}
		}

		ids := []int64{plan.ID}
		for _, sib := range siblings {
			ids = append(ids, sib.ID)
		}
		if _, err := s.entries.DeleteByPlans(ctx, exec, ids); err != nil {
			return appErrors.Storage(err, "failed to replace placement")
		}
		if err := s.entries.Create(ctx, exec, &candidate); err != nil {
			return appErrors.Storage(err, "failed to create placement")
		}
		written = append(written, candidate)
		for _, sib := range siblings {
			entry := siblingEntry(sib, candidate.Range())
			if err := s.entries.Create(ctx, exec, &entry); err != nil {
				return appErrors.Storage(err, "failed to copy placement to linked subject")
			}
			written = append(written, entry)
		}

		detail, err = s.entries.FindDetailByPlan(ctx, exec, plan.ID)
		if err != nil {
			return appErrors.Storage(err, "failed to reload placement")
		}
		return nil
	})
	if err != nil {
		var conflict *models.TimetableConflictError
		if errors.As(err, &conflict) {
			s.metrics.RecordConflicts(conflict.Types())
			s.logger.Info("placement rejected", zap.Int64("plan_id", req.PlanID), zap.Any("conflicts", conflict.Types()))
		}
		return nil, err
	}

	for _, entry := range written {
		s.metrics.RecordPlacement(entry.PlanType)
	}
	s.invalidate(ctx)
	s.logger.Info("placement assigned",
		zap.Int64("plan_id", req.PlanID),
		zap.Int("day", day),
		zap.Int("start_period", start),
		zap.Int("end_period", end),
		zap.Int("linked", len(written)-1),
	)
	return detail, nil
}

// Unassign removes the placement of a plan and of every linked plan, returning the
// ids of all plans affected.
func (s *TimetableService) Unassign(ctx context.Context, planID int64) ([]int64, error) {
	var ids []int64
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		plan, err := loadPlan(ctx, s.plans, exec, planID)
		if err != nil {
			return err
		}
		siblings, _, err := s.links.Siblings(ctx, exec, *plan)
		if err != nil {
			return err
		}
		ids = []int64{plan.ID}
		for _, sib := range siblings {
			ids = append(ids, sib.ID)
		}
		if _, err := s.entries.DeleteByPlans(ctx, exec, ids); err != nil {
			return appErrors.Storage(err, "failed to delete placement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("placement removed", zap.Int64("plan_id", planID), zap.Int64s("affected", ids))
	return ids, nil
}

func (s *TimetableService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, timetableCachePattern)
}

func timetableCacheKey(f models.TimetableFilter) string {
	return fmt.Sprintf("%sroom=%s:teacher=%s:term=%s:level=%s:type=%s",
		timetableCachePrefix, optionalID(f.RoomID), optionalID(f.TeacherID), f.TermYear, f.YearLevel, f.PlanType)
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}

// siblingEntry builds the placement of a linked plan: the shared range with the
// sibling's own scope, room, teacher and section.
func siblingEntry(p models.Plan, r timegrid.Range) models.TimetableEntry {
	return models.TimetableEntry{
		PlanID:      p.ID,
		TermYear:    p.TermYear,
		YearLevel:   p.YearLevel,
		PlanType:    p.PlanType,
		Day:         r.Day,
		StartPeriod: r.Start,
		EndPeriod:   r.End,
		RoomID:      p.RoomID,
		TeacherID:   p.TeacherID,
		Section:     p.Section,
	}
}

func loadPlan(ctx context.Context, plans timetablePlanReader, exec sqlx.ExtContext, id int64) (*models.Plan, error) {
	plan, err := plans.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Storage(err, "failed to load subject")
	}
	return plan, nil
}

func firstInt64(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
