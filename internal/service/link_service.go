package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type linkPlanReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Plan, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Plan, error)
	FindDveSiblings(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error)
}

type coTeachingStore interface {
	FindByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.LinkGroup, error)
	FindByKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.LinkGroup, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, key string) (int64, error)
	AddMembers(ctx context.Context, exec sqlx.ExtContext, groupID int64, planIDs []int64) error
	RemoveMembers(ctx context.Context, exec sqlx.ExtContext, key string, planIDs []int64) error
	DeleteSparse(ctx context.Context, exec sqlx.ExtContext) error
}

type linkPlacementStore interface {
	FindDetailByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.TimetableEntryDetail, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	DeleteByPlans(ctx context.Context, exec sqlx.ExtContext, planIDs []int64) (int64, error)
}

// LinkKind tells how a plan is tied to its siblings.
type LinkKind int

const (
	LinkNone LinkKind = iota
	LinkDVE
	LinkCoTeaching
)

// LinkService resolves DVE mirrors and co-teaching groups and maintains group membership.
type LinkService struct {
	plans      linkPlanReader
	groups     coTeachingStore
	placements linkPlacementStore
	tx         txRunner
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewLinkService constructs a link service.
func NewLinkService(plans linkPlanReader, groups coTeachingStore, placements linkPlacementStore, tx txRunner, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *LinkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkService{plans: plans, groups: groups, placements: placements, tx: tx, cache: cache, validator: validate, logger: logger}
}

// CoTeachingGroupKey returns the conventional key for a subject's co-teaching group.
func CoTeachingGroupKey(subjectCode, termYear string) string {
	return fmt.Sprintf("%s-%s", subjectCode, termYear)
}

// CoTeachingPartKey returns the key used for the co-teaching group of one split part.
func CoTeachingPartKey(subjectCode, termYear string, part int) string {
	return fmt.Sprintf("%s-%s-part%d", subjectCode, termYear, part)
}

// FindLinkGroup returns the active co-teaching group of a plan, or nil when the plan
// is in no group or its group has a single member.
func (s *LinkService) FindLinkGroup(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.LinkGroup, error) {
	group, err := s.groups.FindByPlan(ctx, exec, planID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load co-teaching group")
	}
	if !group.Active() {
		return nil, nil
	}
	return group, nil
}

// FindDveMirror returns the other DVE rows mirroring the plan. Non-DVE plans have none.
func (s *LinkService) FindDveMirror(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error) {
	if !plan.PlanType.IsDVE() {
		return nil, nil
	}
	siblings, err := s.plans.FindDveSiblings(ctx, exec, plan)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load dve mirror")
	}
	return siblings, nil
}

// Siblings returns the plans that must share the plan's placement and how they are linked.
// A DVE mirror takes precedence over an explicit co-teaching group.
func (s *LinkService) Siblings(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, LinkKind, error) {
	if plan.PlanType.IsDVE() {
		mirror, err := s.FindDveMirror(ctx, exec, plan)
		if err != nil {
			return nil, LinkNone, err
		}
		return mirror, LinkDVE, nil
	}

	group, err := s.FindLinkGroup(ctx, exec, plan.ID)
	if err != nil {
		return nil, LinkNone, err
	}
	if group == nil {
		return nil, LinkNone, nil
	}
	others := make([]int64, 0, len(group.PlanIDs)-1)
	for _, id := range group.PlanIDs {
		if id != plan.ID {
			others = append(others, id)
		}
	}
	members, err := s.plans.FindByIDs(ctx, exec, others)
	if err != nil {
		return nil, LinkNone, appErrors.Storage(err, "failed to load co-teaching members")
	}
	return members, LinkCoTeaching, nil
}

// CreateOrExtendGroup unions planIDs into the group under key. Plans leave any
// previous group; groups left with fewer than two members are removed.
func (s *LinkService) CreateOrExtendGroup(ctx context.Context, exec sqlx.ExtContext, key string, planIDs []int64) (*models.LinkGroup, error) {
	groupID, err := s.groups.Upsert(ctx, exec, key)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to create co-teaching group")
	}
	if err := s.groups.AddMembers(ctx, exec, groupID, planIDs); err != nil {
		return nil, appErrors.Storage(err, "failed to add co-teaching members")
	}
	if err := s.groups.DeleteSparse(ctx, exec); err != nil {
		return nil, appErrors.Storage(err, "failed to prune co-teaching groups")
	}
	group, err := s.groups.FindByKey(ctx, exec, key)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to reload co-teaching group")
	}
	return group, nil
}

// DissolveLink removes planIDs from the group under key and drops the group once
// fewer than two members remain.
func (s *LinkService) DissolveLink(ctx context.Context, exec sqlx.ExtContext, key string, planIDs []int64) error {
	if err := s.groups.RemoveMembers(ctx, exec, key, planIDs); err != nil {
		return appErrors.Storage(err, "failed to remove co-teaching members")
	}
	if err := s.groups.DeleteSparse(ctx, exec); err != nil {
		return appErrors.Storage(err, "failed to prune co-teaching groups")
	}
	return nil
}

// Check reports the co-teaching group of a plan.
func (s *LinkService) Check(ctx context.Context, planID int64) (*dto.CoTeachingCheckResponse, error) {
	if _, err := loadPlan(ctx, s.plans, nil, planID); err != nil {
		return nil, err
	}
	group, err := s.FindLinkGroup(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return &dto.CoTeachingCheckResponse{PlanIDs: []int64{planID}}, nil
	}
	details, err := s.plans.FindByIDs(ctx, nil, group.PlanIDs)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load co-teaching members")
	}
	key := group.GroupKey
	return &dto.CoTeachingCheckResponse{GroupKey: &key, PlanIDs: group.PlanIDs, Details: details}, nil
}

// Link marks plans sharing one subject code and term as co-taught. When the placed
// members agree on one placement it is copied to the unplaced members; when they
// disagree every member is unplaced so the group never holds divergent placements.
func (s *LinkService) Link(ctx context.Context, req dto.LinkCoTeachingRequest) (*models.LinkGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid co-teaching payload")
	}
	ids := uniqueIDs(req.SubjectIDs)
	if len(ids) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "co-teaching needs at least two distinct subjects")
	}

	var group *models.LinkGroup
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		plans, err := s.plans.FindByIDs(ctx, exec, ids)
		if err != nil {
			return appErrors.Storage(err, "failed to load subjects")
		}
		if len(plans) != len(ids) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		first := plans[0]
		for _, p := range plans[1:] {
			if p.SubjectCode != first.SubjectCode || p.TermYear != first.TermYear {
				return appErrors.Clone(appErrors.ErrValidation, "co-taught subjects must share subject code and term")
			}
		}
		for _, p := range plans {
			if p.PlanType.IsDVE() {
				return appErrors.Clone(appErrors.ErrValidation, "dve subjects are mirrored automatically and cannot be co-taught")
			}
		}

		key := req.GroupKey
		if key == "" {
			key = CoTeachingGroupKey(first.SubjectCode, first.TermYear)
			if first.PartNumber != nil {
				key = CoTeachingPartKey(first.SubjectCode, first.TermYear, *first.PartNumber)
			}
		}
		group, err = s.CreateOrExtendGroup(ctx, exec, key, ids)
		if err != nil {
			return err
		}
		return s.alignPlacements(ctx, exec, group.PlanIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("co-teaching linked", zap.String("group_key", group.GroupKey), zap.Int64s("plan_ids", group.PlanIDs))
	return group, nil
}

// Unlink removes plans from a co-teaching group. The removed plans lose their
// placements since they no longer share the group's meeting.
func (s *LinkService) Unlink(ctx context.Context, req dto.UnlinkCoTeachingRequest) ([]int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid co-teaching payload")
	}
	ids := uniqueIDs(req.SubjectIDs)

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		group, err := s.groups.FindByKey(ctx, exec, req.GroupKey)
		if err != nil {
			return appErrors.Storage(err, "failed to load co-teaching group")
		}
		if group == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "co-teaching group not found")
		}
		for _, id := range ids {
			if !group.Contains(id) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %d is not in group %s", id, req.GroupKey))
			}
		}
		if err := s.DissolveLink(ctx, exec, req.GroupKey, ids); err != nil {
			return err
		}
		if _, err := s.placements.DeleteByPlans(ctx, exec, ids); err != nil {
			return appErrors.Storage(err, "failed to clear unlinked placements")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("co-teaching unlinked", zap.String("group_key", req.GroupKey), zap.Int64s("plan_ids", ids))
	return ids, nil
}

func (s *LinkService) alignPlacements(ctx context.Context, exec sqlx.ExtContext, planIDs []int64) error {
	var reference *models.TimetableEntryDetail
	diverged := false
	var unplaced []int64
	for _, id := range planIDs {
		entry, err := s.placements.FindDetailByPlan(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				unplaced = append(unplaced, id)
				continue
			}
			return appErrors.Storage(err, "failed to load placement")
		}
		if reference == nil {
			reference = entry
			continue
		}
		if entry.Range() != reference.Range() {
			diverged = true
		}
	}

	if reference == nil || len(unplaced) == 0 && !diverged {
		return nil
	}
	if diverged {
		if _, err := s.placements.DeleteByPlans(ctx, exec, planIDs); err != nil {
			return appErrors.Storage(err, "failed to clear divergent placements")
		}
		return nil
	}

	plans, err := s.plans.FindByIDs(ctx, exec, unplaced)
	if err != nil {
		return appErrors.Storage(err, "failed to load subjects")
	}
	for _, p := range plans {
		entry := siblingEntry(p, reference.Range())
		if err := s.placements.Create(ctx, exec, &entry); err != nil {
			return appErrors.Storage(err, "failed to copy co-teaching placement")
		}
	}
	return nil
}

func (s *LinkService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, timetableCachePattern)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
