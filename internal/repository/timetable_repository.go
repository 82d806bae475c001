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

const timetableColumns = `t.id, t.plan_id, t.term_year, t.year_level, t.plan_type, t.day, t.start_period, t.end_period, t.room_id, t.teacher_id, t.section, t.created_at, t.updated_at`

const timetableDetailSelect = `SELECT ` + timetableColumns + `,
       p.subject_code, p.subject_name, p.lecture_hour, p.lab_hour,
       r.name AS room_name, te.name AS teacher_name
FROM timetables t
JOIN plans p ON p.id = t.plan_id
LEFT JOIN rooms r ON r.id = t.room_id
LEFT JOIN teachers te ON te.id = t.teacher_id`

// TimetableRepository persists placements.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns placements matching the filter ordered by day then start period.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	var conditions []string
	var args []interface{}
	if filter.RoomID != nil {
		args = append(args, *filter.RoomID)
		conditions = append(conditions, fmt.Sprintf("t.room_id = $%d", len(args)))
	}
	if filter.TeacherID != nil {
		args = append(args, *filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("t.teacher_id = $%d", len(args)))
	}
	if filter.TermYear != "" {
		args = append(args, filter.TermYear)
		conditions = append(conditions, fmt.Sprintf("t.term_year = $%d", len(args)))
	}
	if filter.YearLevel != "" {
		args = append(args, filter.YearLevel)
		conditions = append(conditions, fmt.Sprintf("t.year_level = $%d", len(args)))
	}
	if filter.PlanType != "" {
		args = append(args, string(filter.PlanType))
		conditions = append(conditions, fmt.Sprintf("t.plan_type = $%d", len(args)))
	}

	query := timetableDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.day ASC, t.start_period ASC, t.id ASC"

	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return entries, nil
}

// ListByScope returns every placement of one scope.
func (r *TimetableRepository) ListByScope(ctx context.Context, exec sqlx.ExtContext, scope models.Scope) ([]models.TimetableEntryDetail, error) {
	query := timetableDetailSelect + `
WHERE t.term_year = $1 AND t.year_level = $2 AND t.plan_type = $3
ORDER BY t.day ASC, t.start_period ASC, t.id ASC`
	var entries []models.TimetableEntryDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, scope.TermYear, scope.YearLevel, string(scope.PlanType)); err != nil {
		return nil, fmt.Errorf("list timetables by scope: %w", err)
	}
	return entries, nil
}

// FindDetailByPlan loads the joined placement of a plan.
func (r *TimetableRepository) FindDetailByPlan(ctx context.Context, exec sqlx.ExtContext, planID int64) (*models.TimetableEntryDetail, error) {
	query := timetableDetailSelect + ` WHERE t.plan_id = $1 ORDER BY t.id DESC LIMIT 1`
	var entry models.TimetableEntryDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &entry, query, planID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindOverlapping returns placements on the same term and day whose range intersects
// the query range, narrowed by the optional fields of q.
func (r *TimetableRepository) FindOverlapping(ctx context.Context, exec sqlx.ExtContext, q models.OverlapQuery) ([]models.TimetableEntryDetail, error) {
	args := []interface{}{q.TermYear, q.Day, q.Start, q.End, q.ExcludePlanID}
	conditions := []string{
		"t.term_year = $1",
		"t.day = $2",
		"(($3 BETWEEN t.start_period AND t.end_period) OR ($4 BETWEEN t.start_period AND t.end_period) OR ($3 <= t.start_period AND $4 >= t.end_period))",
		"t.plan_id <> $5",
	}
	if q.YearLevel != "" {
		args = append(args, q.YearLevel)
		conditions = append(conditions, fmt.Sprintf("t.year_level = $%d", len(args)))
	}
	if q.PlanType != "" {
		args = append(args, string(q.PlanType))
		conditions = append(conditions, fmt.Sprintf("t.plan_type = $%d", len(args)))
	}
	if q.TeacherID != nil {
		args = append(args, *q.TeacherID)
		conditions = append(conditions, fmt.Sprintf("t.teacher_id = $%d", len(args)))
	}
	if q.RoomID != nil {
		args = append(args, *q.RoomID)
		conditions = append(conditions, fmt.Sprintf("t.room_id = $%d", len(args)))
	}
	if q.Section != nil {
		args = append(args, *q.Section)
		conditions = append(conditions, fmt.Sprintf("t.section = $%d", len(args)))
	}

	query := timetableDetailSelect + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY t.start_period ASC, t.id ASC"
	var entries []models.TimetableEntryDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping timetables: %w", err)
	}
	return entries, nil
}

// Create inserts a placement and stores the generated id on it.
func (r *TimetableRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO timetables (plan_id, term_year, year_level, plan_type, day, start_period, end_period, room_id, teacher_id, section, created_at, updated_at)
VALUES (:plan_id, :term_year, :year_level, :plan_type, :day, :start_period, :end_period, :room_id, :teacher_id, :section, :created_at, :updated_at)
RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, r.exec(exec), query, entry)
	if err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&entry.ID); err != nil {
			return fmt.Errorf("scan timetable id: %w", err)
		}
	}
	return rows.Err()
}

// DeleteByPlans removes the placements of the given plans and reports how many rows went.
func (r *TimetableRepository) DeleteByPlans(ctx context.Context, exec sqlx.ExtContext, planIDs []int64) (int64, error) {
	if len(planIDs) == 0 {
		return 0, nil
	}
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetables WHERE plan_id = ANY($1)`, pq.Array(planIDs))
	if err != nil {
		return 0, fmt.Errorf("delete timetables: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete timetables rows affected: %w", err)
	}
	return affected, nil
}
