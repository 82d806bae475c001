package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

const planColumns = `id, subject_code, subject_name, credit, lecture_hour, lab_hour, term_year, year_level, plan_type, is_in_department, room_id, teacher_id, section, base_name, part_number, created_at, updated_at`

// PlanRepository persists subject plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs a plan repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a plan by id.
func (r *PlanRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	var plan models.Plan
	if err := sqlx.GetContext(ctx, r.exec(exec), &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByIDs loads plans by id ordered by id.
func (r *PlanRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Plan, error) {
	if len(ids) == 0 {
		return []models.Plan{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = ANY($1) ORDER BY id ASC`, planColumns)
	var plans []models.Plan
	if err := sqlx.SelectContext(ctx, r.exec(exec), &plans, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find plans by ids: %w", err)
	}
	return plans, nil
}

// List returns plans narrowed by the filter.
func (r *PlanRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.PlanFilter) ([]models.Plan, error) {
	var conditions []string
	var args []interface{}
	if filter.TermYear != "" {
		args = append(args, filter.TermYear)
		conditions = append(conditions, fmt.Sprintf("term_year = $%d", len(args)))
	}
	if filter.YearLevel != "" {
		args = append(args, filter.YearLevel)
		conditions = append(conditions, fmt.Sprintf("year_level = $%d", len(args)))
	}
	if filter.PlanType != "" {
		args = append(args, string(filter.PlanType))
		conditions = append(conditions, fmt.Sprintf("plan_type = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM plans`, planColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id ASC"

	var plans []models.Plan
	if err := sqlx.SelectContext(ctx, r.exec(exec), &plans, query, args...); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// ListBySectionOutsideType returns other plans of the same subject and term reusing
// a section label under a different plan type.
func (r *PlanRepository) ListBySectionOutsideType(ctx context.Context, exec sqlx.ExtContext, plan models.Plan, section string) ([]models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans
WHERE subject_code = $1 AND term_year = $2 AND section = $3 AND plan_type <> $4 AND id <> $5
ORDER BY id ASC`, planColumns)
	var plans []models.Plan
	if err := sqlx.SelectContext(ctx, r.exec(exec), &plans, query, plan.SubjectCode, plan.TermYear, section, string(plan.PlanType), plan.ID); err != nil {
		return nil, fmt.Errorf("list plans by section: %w", err)
	}
	return plans, nil
}

// FindDveSiblings returns the other DVE rows that mirror the plan: same subject code,
// term and split part number across both DVE tracks.
func (r *PlanRepository) FindDveSiblings(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans
WHERE subject_code = $1 AND term_year = $2 AND plan_type = ANY($3) AND id <> $4
  AND part_number IS NOT DISTINCT FROM $5::int
ORDER BY id ASC`, planColumns)
	types := make([]string, 0, len(models.DVEPlanTypes))
	for _, t := range models.DVEPlanTypes {
		types = append(types, string(t))
	}
	var plans []models.Plan
	if err := sqlx.SelectContext(ctx, r.exec(exec), &plans, query, plan.SubjectCode, plan.TermYear, pq.Array(types), plan.ID, plan.PartNumber); err != nil {
		return nil, fmt.Errorf("find dve siblings: %w", err)
	}
	return plans, nil
}

// ListLineageParts returns every split part sharing the plan's lineage within its scope,
// ordered by part number. An unsplit plan yields no rows.
func (r *PlanRepository) ListLineageParts(ctx context.Context, exec sqlx.ExtContext, plan models.Plan) ([]models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans
WHERE subject_code = $1 AND term_year = $2 AND year_level = $3 AND plan_type = $4
  AND base_name = $5 AND part_number IS NOT NULL
ORDER BY part_number ASC, id ASC`, planColumns)
	var plans []models.Plan
	if err := sqlx.SelectContext(ctx, r.exec(exec), &plans, query, plan.SubjectCode, plan.TermYear, plan.YearLevel, string(plan.PlanType), plan.Lineage()); err != nil {
		return nil, fmt.Errorf("list lineage parts: %w", err)
	}
	return plans, nil
}

// Create inserts a plan and stores the generated id on it.
func (r *PlanRepository) Create(ctx context.Context, exec sqlx.ExtContext, plan *models.Plan) error {
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `INSERT INTO plans (subject_code, subject_name, credit, lecture_hour, lab_hour, term_year, year_level, plan_type, is_in_department, room_id, teacher_id, section, base_name, part_number, created_at, updated_at)
VALUES (:subject_code, :subject_name, :credit, :lecture_hour, :lab_hour, :term_year, :year_level, :plan_type, :is_in_department, :room_id, :teacher_id, :section, :base_name, :part_number, :created_at, :updated_at)
RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, r.exec(exec), query, plan)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&plan.ID); err != nil {
			return fmt.Errorf("scan plan id: %w", err)
		}
	}
	return rows.Err()
}

// Update persists the mutable fields touched by split and merge.
func (r *PlanRepository) Update(ctx context.Context, exec sqlx.ExtContext, plan *models.Plan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE plans SET subject_name = :subject_name, lecture_hour = :lecture_hour, lab_hour = :lab_hour,
room_id = :room_id, teacher_id = :teacher_id, section = :section, base_name = :base_name, part_number = :part_number, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, plan); err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return nil
}

// Delete removes plans by id.
func (r *PlanRepository) Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM plans WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete plans: %w", err)
	}
	return nil
}
