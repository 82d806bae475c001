package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

// CoTeachingRepository persists co-teaching groups and their membership.
type CoTeachingRepository struct {
	db *sqlx.DB
}

// NewCoTeachingRepository constructs a co-teaching repository.
func NewCoTeachingRepository(db *sqlx.DB) *CoTeachingRepository {
	return &CoTeachingRepository{db: db}
}

func (r *CoTeachingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

type groupMemberRow struct {
	GroupKey string `db:"group_key"`
	PlanID   int64  `db:"plan_id"`
}

func toLinkGroup(rows []groupMemberRow) *models.LinkGroup {
	if len(rows) == 0 {
		return nil
	}
	group := &models.LinkGroup{GroupKey: rows[0].GroupKey, PlanIDs: make([]int64, 0, len(rows))}
	for _, row := range rows {
		group.PlanIDs = append(group.PlanIDs, row.PlanID)
	}
	return group
}

// FindByPlan returns the group containing the plan, or nil when it has none.
func (r *CoTeachingRepository) FindByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.LinkGroup, error) {
	const query = `SELECT g.group_key, m.plan_id
FROM co_teaching_group_plans m
JOIN co_teaching_groups g ON g.id = m.group_id
WHERE m.group_id = (SELECT group_id FROM co_teaching_group_plans WHERE plan_id = $1)
ORDER BY m.plan_id ASC`
	var rows []groupMemberRow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, planID); err != nil {
		return nil, fmt.Errorf("find co-teaching group by plan: %w", err)
	}
	return toLinkGroup(rows), nil
}

// FindByKey returns the group registered under key, or nil when absent.
func (r *CoTeachingRepository) FindByKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.LinkGroup, error) {
	const query = `SELECT g.group_key, m.plan_id
FROM co_teaching_groups g
JOIN co_teaching_group_plans m ON m.group_id = g.id
WHERE g.group_key = $1
ORDER BY m.plan_id ASC`
	var rows []groupMemberRow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, key); err != nil {
		return nil, fmt.Errorf("find co-teaching group by key: %w", err)
	}
	return toLinkGroup(rows), nil
}

// Upsert creates the group for key if needed and returns its id.
func (r *CoTeachingRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, key string) (int64, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO co_teaching_groups (group_key, created_at, updated_at) VALUES ($1, $2, $2)
ON CONFLICT (group_key) DO UPDATE SET updated_at = EXCLUDED.updated_at
RETURNING id`
	var id int64
	if err := sqlx.GetContext(ctx, r.exec(exec), &id, query, key, now); err != nil {
		return 0, fmt.Errorf("upsert co-teaching group: %w", err)
	}
	return id, nil
}

// AddMembers moves the plans into the group. A plan belongs to at most one group,
// so existing memberships elsewhere are replaced.
func (r *CoTeachingRepository) AddMembers(ctx context.Context, exec sqlx.ExtContext, groupID int64, planIDs []int64) error {
	const query = `INSERT INTO co_teaching_group_plans (group_id, plan_id) VALUES ($1, $2)
ON CONFLICT (plan_id) DO UPDATE SET group_id = EXCLUDED.group_id`
	target := r.exec(exec)
	for _, planID := range planIDs {
		if _, err := target.ExecContext(ctx, query, groupID, planID); err != nil {
			return fmt.Errorf("add co-teaching member: %w", err)
		}
	}
	return nil
}

// RemoveMembers detaches the plans from the group registered under key.
func (r *CoTeachingRepository) RemoveMembers(ctx context.Context, exec sqlx.ExtContext, key string, planIDs []int64) error {
	if len(planIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM co_teaching_group_plans
WHERE plan_id = ANY($2) AND group_id = (SELECT id FROM co_teaching_groups WHERE group_key = $1)`
	if _, err := r.exec(exec).ExecContext(ctx, query, key, pq.Array(planIDs)); err != nil {
		return fmt.Errorf("remove co-teaching members: %w", err)
	}
	return nil
}

// DeleteSparse removes every group left with fewer than two members along with
// its remaining membership row.
func (r *CoTeachingRepository) DeleteSparse(ctx context.Context, exec sqlx.ExtContext) error {
	const sparse = `SELECT g.id FROM co_teaching_groups g
LEFT JOIN co_teaching_group_plans m ON m.group_id = g.id
GROUP BY g.id HAVING COUNT(m.plan_id) < 2`
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM co_teaching_group_plans WHERE group_id IN (`+sparse+`)`); err != nil {
		return fmt.Errorf("delete sparse co-teaching members: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM co_teaching_groups WHERE id IN (`+sparse+`)`); err != nil {
		return fmt.Errorf("delete sparse co-teaching groups: %w", err)
	}
	return nil
}
