package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type partPlanStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Plan, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Plan, error)
	ListLineageParts(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error)
	Create(ctx context.Context, exec sqlx.ExtContext, plan *models.Plan) error
	Update(ctx context.Context, exec sqlx.ExtContext, plan *models.Plan) error
	Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) error
}

type partPlacementStore interface {
	DeleteByPlans(ctx context.Context, exec sqlx.ExtContext, planIDs []int64) (int64, error)
}

type partLinker interface {
	FindLinkGroup(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.LinkGroup, error)
	FindDveMirror(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error)
	CreateOrExtendGroup(ctx context.Context, exec sqlx.ExtContext, key string, planIDs []int64) (*models.LinkGroup, error)
}

// SubjectPartService splits subjects into independently placed parts and merges them back.
type SubjectPartService struct {
	plans      partPlanStore
	placements partPlacementStore
	links      partLinker
	tx         txRunner
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSubjectPartService constructs the split/merge engine.
func NewSubjectPartService(plans partPlanStore, placements partPlacementStore, links partLinker, tx txRunner, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectPartService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectPartService{plans: plans, placements: placements, links: links, tx: tx, cache: cache, validator: validate, logger: logger}
}

// Split shrinks the subject to part 1 and creates part 2, doing the same for every
// co-taught or DVE-mirrored sibling. All affected placements are removed.
func (s *SubjectPartService) Split(ctx context.Context, req dto.SplitSubjectRequest) (*dto.SplitSubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid split payload")
	}
	part1, part2 := req.SplitData.Part1, req.SplitData.Part2
	if part1.LectureHour+part1.LabHour == 0 || part2.LectureHour+part2.LabHour == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "each part needs at least one lecture or lab hour")
	}

	resp := &dto.SplitSubjectResponse{}
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		plan, err := loadPlan(ctx, s.plans, exec, req.SubjectID)
		if err != nil {
			return err
		}
		if part1.LectureHour+part2.LectureHour != plan.LectureHour || part1.LabHour+part2.LabHour != plan.LabHour {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("parts must add up to %d lecture and %d lab hours", plan.LectureHour, plan.LabHour))
		}

		members, coTaught, err := s.linkedMembers(ctx, exec, *plan)
		if err != nil {
			return err
		}
		resp.IsCoTeaching = coTaught

		var updatedIDs, createdIDs []int64
		var keepPart, newPart int
		for i := range members {
			m := members[i]
			if m.LectureHour != plan.LectureHour || m.LabHour != plan.LabHour {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("linked subject %d has different hours and cannot be split in step", m.ID))
			}
			updated, created, err := s.splitOne(ctx, exec, m, part1, part2)
			if err != nil {
				return err
			}
			if m.ID == plan.ID {
				if part1.PartNumber > 0 && part1.PartNumber != *updated.PartNumber ||
					part2.PartNumber > 0 && part2.PartNumber != *created.PartNumber {
					return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("part numbers must be %d and %d", *updated.PartNumber, *created.PartNumber))
				}
				resp.UpdatedSubject = updated
				resp.NewSubject = created
				keepPart, newPart = *updated.PartNumber, *created.PartNumber
			}
			resp.AllUpdatedSubjects = append(resp.AllUpdatedSubjects, updated)
			resp.AllNewSubjects = append(resp.AllNewSubjects, created)
			updatedIDs = append(updatedIDs, updated.ID)
			createdIDs = append(createdIDs, created.ID)
		}

		if _, err := s.placements.DeleteByPlans(ctx, exec, updatedIDs); err != nil {
			return appErrors.Storage(err, "failed to clear split placements")
		}

		if coTaught {
			if _, err := s.links.CreateOrExtendGroup(ctx, exec, CoTeachingPartKey(plan.SubjectCode, plan.TermYear, keepPart), updatedIDs); err != nil {
				return err
			}
			if _, err := s.links.CreateOrExtendGroup(ctx, exec, CoTeachingPartKey(plan.SubjectCode, plan.TermYear, newPart), createdIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, timetableCachePattern)
	s.logger.Info("subject split",
		zap.Int64("plan_id", req.SubjectID),
		zap.Int64("new_plan_id", resp.NewSubject.ID),
		zap.Int("linked", len(resp.AllUpdatedSubjects)-1),
		zap.Bool("co_teaching", resp.IsCoTeaching),
	)
	return resp, nil
}

func (s *SubjectPartService) splitOne(ctx context.Context, exec sqlx.ExtContext, m models.Plan, part1, part2 dto.SplitPart) (models.Plan, models.Plan, error) {
	keep := 1
	next := 2
	if m.IsPart() {
		parts, err := s.plans.ListLineageParts(ctx, exec, m)
		if err != nil {
			return models.Plan{}, models.Plan{}, appErrors.Storage(err, "failed to load subject parts")
		}
		keep = *m.PartNumber
		next = keep + 1
		for _, p := range parts {
			if p.PartNumber != nil && *p.PartNumber >= next {
				next = *p.PartNumber + 1
			}
		}
	}

	base := m.Lineage()
	section := baseSection(m.Section, m.PartNumber)

	updated := m
	updated.SubjectName = m.PartName(keep)
	updated.LectureHour = part1.LectureHour
	updated.LabHour = part1.LabHour
	updated.BaseName = &base
	updated.PartNumber = intPtr(keep)
	updated.Section = partSection(section, keep)
	if err := s.plans.Update(ctx, exec, &updated); err != nil {
		return models.Plan{}, models.Plan{}, appErrors.Storage(err, "failed to update split subject")
	}

	created := m
	created.ID = 0
	created.CreatedAt, created.UpdatedAt = time.Time{}, time.Time{}
	created.SubjectName = m.PartName(next)
	created.LectureHour = part2.LectureHour
	created.LabHour = part2.LabHour
	created.BaseName = &base
	created.PartNumber = intPtr(next)
	created.Section = partSection(section, next)
	if err := s.plans.Create(ctx, exec, &created); err != nil {
		return models.Plan{}, models.Plan{}, appErrors.Storage(err, "failed to create split part")
	}
	return updated, created, nil
}

// Merge folds every part of the subject's lineage back into its lowest-numbered
// part, for the subject and each linked sibling. Merged subjects start unplaced.
func (s *SubjectPartService) Merge(ctx context.Context, req dto.MergeSubjectRequest) (*dto.MergeSubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid merge payload")
	}

	resp := &dto.MergeSubjectResponse{DeletedParts: []int64{}}
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		plan, err := loadPlan(ctx, s.plans, exec, req.SubjectID)
		if err != nil {
			return err
		}
		if !plan.IsPart() {
			return appErrors.Clone(appErrors.ErrValidation, "subject has not been split")
		}

		members, coTaught, err := s.linkedMembers(ctx, exec, *plan)
		if err != nil {
			return err
		}
		resp.IsCoTeaching = coTaught

		done := make(map[int64]struct{})
		var survivors []models.Plan
		for _, m := range members {
			if _, ok := done[m.ID]; ok {
				continue
			}
			merged, deleted, err := s.mergeOne(ctx, exec, m)
			if err != nil {
				return err
			}
			done[merged.ID] = struct{}{}
			for _, id := range deleted {
				done[id] = struct{}{}
			}
			if m.ID == plan.ID || containsID(deleted, plan.ID) {
				resp.MergedSubject = merged
			}
			survivors = append(survivors, merged)
			resp.DeletedParts = append(resp.DeletedParts, deleted...)
		}
		if len(survivors) > 1 {
			resp.MergedSubjects = survivors
		}

		if coTaught && len(survivors) > 1 {
			ids := make([]int64, 0, len(survivors))
			for _, p := range survivors {
				ids = append(ids, p.ID)
			}
			if _, err := s.links.CreateOrExtendGroup(ctx, exec, CoTeachingGroupKey(plan.SubjectCode, plan.TermYear), ids); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, timetableCachePattern)
	s.logger.Info("subject merged",
		zap.Int64("plan_id", resp.MergedSubject.ID),
		zap.Int64s("deleted_parts", resp.DeletedParts),
		zap.Bool("co_teaching", resp.IsCoTeaching),
	)
	return resp, nil
}

func (s *SubjectPartService) mergeOne(ctx context.Context, exec sqlx.ExtContext, m models.Plan) (models.Plan, []int64, error) {
	parts, err := s.plans.ListLineageParts(ctx, exec, m)
	if err != nil {
		return models.Plan{}, nil, appErrors.Storage(err, "failed to load subject parts")
	}
	if len(parts) == 0 {
		parts = []models.Plan{m}
	}

	merged := parts[0]
	merged.LectureHour, merged.LabHour = 0, 0
	merged.RoomID, merged.TeacherID, merged.Section = nil, nil, nil
	allIDs := make([]int64, 0, len(parts))
	var deleted []int64
	for _, p := range parts {
		merged.LectureHour += p.LectureHour
		merged.LabHour += p.LabHour
		merged.RoomID = firstInt64(merged.RoomID, p.RoomID)
		merged.TeacherID = firstInt64(merged.TeacherID, p.TeacherID)
		merged.Section = firstString(merged.Section, baseSection(p.Section, p.PartNumber))
		allIDs = append(allIDs, p.ID)
		if p.ID != merged.ID {
			deleted = append(deleted, p.ID)
		}
	}
	merged.SubjectName = m.Lineage()
	merged.BaseName = nil
	merged.PartNumber = nil

	if _, err := s.placements.DeleteByPlans(ctx, exec, allIDs); err != nil {
		return models.Plan{}, nil, appErrors.Storage(err, "failed to clear part placements")
	}
	if err := s.plans.Delete(ctx, exec, deleted); err != nil {
		return models.Plan{}, nil, appErrors.Storage(err, "failed to delete merged parts")
	}
	if err := s.plans.Update(ctx, exec, &merged); err != nil {
		return models.Plan{}, nil, appErrors.Storage(err, "failed to update merged subject")
	}
	return merged, deleted, nil
}

// linkedMembers returns the plan followed by every plan that must change in step with it.
func (s *SubjectPartService) linkedMembers(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, bool, error) {
	if plan.PlanType.IsDVE() {
		mirror, err := s.links.FindDveMirror(ctx, exec, plan)
		if err != nil {
			return nil, false, err
		}
		return append([]models.Plan{plan}, mirror...), false, nil
	}

	group, err := s.links.FindLinkGroup(ctx, exec, plan.ID)
	if err != nil {
		return nil, false, err
	}
	if group == nil {
		return []models.Plan{plan}, false, nil
	}
	members := []models.Plan{plan}
	var others []int64
	for _, id := range group.PlanIDs {
		if id != plan.ID {
			others = append(others, id)
		}
	}
	rest, err := s.plans.FindByIDs(ctx, exec, others)
	if err != nil {
		return nil, false, appErrors.Storage(err, "failed to load co-teaching members")
	}
	return append(members, rest...), true, nil
}

// baseSection strips the "-<part>" suffix a split adds to a section label.
func baseSection(section *string, part *int) *string {
	if section == nil || *section == "" {
		return nil
	}
	if part == nil {
		return section
	}
	suffix := fmt.Sprintf("-%d", *part)
	base := strings.TrimSuffix(*section, suffix)
	return &base
}

func partSection(base *string, part int) *string {
	if base == nil {
		return nil
	}
	label := fmt.Sprintf("%s-%d", *base, part)
	return &label
}

func intPtr(v int) *int {
	return &v
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
