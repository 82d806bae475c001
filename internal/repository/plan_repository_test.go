package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var planRowColumns = []string{"id", "subject_code", "subject_name", "credit", "lecture_hour", "lab_hour", "term_year", "year_level", "plan_type", "is_in_department", "room_id", "teacher_id", "section", "base_name", "part_number", "created_at", "updated_at"}

func TestPlanRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(planRowColumns).
		AddRow(7, "CS101", "Programming", 3, 2, 1, "1/2567", "1", "TRANSFER", true, 4, 9, "1", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM plans WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	plan, err := repo.FindByID(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, "CS101", plan.SubjectCode)
	assert.Equal(t, models.PlanTypeTransfer, plan.PlanType)
	require.NotNil(t, plan.TeacherID)
	assert.Equal(t, int64(9), *plan.TeacherID)
	assert.Nil(t, plan.PartNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM plans WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), nil, 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPlanRepositoryListByFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(planRowColumns).
		AddRow(1, "A", "Alpha", 3, 3, 0, "1/2567", "1", "FOUR_YEAR", true, nil, nil, nil, nil, nil, now, now).
		AddRow(2, "B", "Beta", 2, 2, 0, "1/2567", "1", "FOUR_YEAR", true, nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery("FROM plans WHERE term_year = \\$1 AND year_level = \\$2 AND plan_type = \\$3 ORDER BY id ASC").
		WithArgs("1/2567", "1", "FOUR_YEAR").
		WillReturnRows(rows)

	plans, err := repo.List(context.Background(), nil, models.PlanFilter{TermYear: "1/2567", YearLevel: "1", PlanType: models.PlanTypeFourYear})
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryFindDveSiblings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(planRowColumns).
		AddRow(11, "DV1", "Vocational", 3, 3, 0, "1/2567", "1", "DVE-MSIX", true, nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery("FROM plans\\s+WHERE subject_code = \\$1 AND term_year = \\$2 AND plan_type = ANY\\(\\$3\\) AND id <> \\$4").
		WithArgs("DV1", "1/2567", sqlmock.AnyArg(), int64(10), nil).
		WillReturnRows(rows)

	siblings, err := repo.FindDveSiblings(context.Background(), nil, models.Plan{ID: 10, SubjectCode: "DV1", TermYear: "1/2567", PlanType: models.PlanTypeDVELVC})
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, models.PlanTypeDVEMSIX, siblings[0].PlanType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO plans")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	part := 2
	base := "Programming"
	plan := &models.Plan{SubjectCode: "CS101", SubjectName: "Programming (ส่วนที่ 2)", LectureHour: 1, TermYear: "1/2567", YearLevel: "1", PlanType: models.PlanTypeTransfer, BaseName: &base, PartNumber: &part}
	require.NoError(t, repo.Create(context.Background(), nil, plan))
	assert.Equal(t, int64(42), plan.ID)
	assert.False(t, plan.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryUpdateUsesExecutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plans SET subject_name = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.Update(context.Background(), tx, &models.Plan{ID: 3, SubjectName: "Renamed"}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryDeleteSkipsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	require.NoError(t, repo.Delete(context.Background(), nil, nil))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM plans WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.Delete(context.Background(), nil, []int64{4, 5}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryListLineageParts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(planRowColumns).
		AddRow(3, "CS101", "Programming (ส่วนที่ 1)", 3, 1, 0, "1/2567", "1", "TRANSFER", true, nil, nil, "1-1", "Programming", 1, now, now).
		AddRow(8, "CS101", "Programming (ส่วนที่ 2)", 3, 1, 1, "1/2567", "1", "TRANSFER", true, nil, nil, "1-2", "Programming", 2, now, now)
	mock.ExpectQuery("FROM plans\\s+WHERE subject_code = \\$1 AND term_year = \\$2 AND year_level = \\$3 AND plan_type = \\$4\\s+AND base_name = \\$5 AND part_number IS NOT NULL\\s+ORDER BY part_number ASC, id ASC").
		WithArgs("CS101", "1/2567", "1", "TRANSFER", "Programming").
		WillReturnRows(rows)

	base := "Programming"
	part := 2
	plan := models.Plan{ID: 8, SubjectCode: "CS101", SubjectName: "Programming (ส่วนที่ 2)", TermYear: "1/2567", YearLevel: "1", PlanType: models.PlanTypeTransfer, BaseName: &base, PartNumber: &part}
	parts, err := repo.ListLineageParts(context.Background(), nil, plan)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].PartNumber)
	assert.Equal(t, 1, *parts[0].PartNumber)
	assert.Equal(t, "Programming", *parts[1].BaseName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryListLineagePartsFallsBackToName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery("AND base_name = \\$5 AND part_number IS NOT NULL").
		WithArgs("MA201", "2/2567", "2", "FOUR_YEAR", "Calculus").
		WillReturnRows(sqlmock.NewRows(planRowColumns))

	plan := models.Plan{ID: 4, SubjectCode: "MA201", SubjectName: "Calculus", TermYear: "2/2567", YearLevel: "2", PlanType: models.PlanTypeFourYear}
	parts, err := repo.ListLineageParts(context.Background(), nil, plan)
	require.NoError(t, err)
	assert.Empty(t, parts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryListBySectionOutsideType(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(planRowColumns).
		AddRow(21, "CS101", "Programming", 3, 2, 1, "1/2567", "1", "FOUR_YEAR", true, nil, nil, "2", nil, nil, now, now)
	mock.ExpectQuery("FROM plans\\s+WHERE subject_code = \\$1 AND term_year = \\$2 AND section = \\$3 AND plan_type <> \\$4 AND id <> \\$5\\s+ORDER BY id ASC").
		WithArgs("CS101", "1/2567", "2", "TRANSFER", int64(7)).
		WillReturnRows(rows)

	plan := models.Plan{ID: 7, SubjectCode: "CS101", TermYear: "1/2567", YearLevel: "1", PlanType: models.PlanTypeTransfer}
	hits, err := repo.ListBySectionOutsideType(context.Background(), nil, plan, "2")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(21), hits[0].ID)
	assert.Equal(t, models.PlanTypeFourYear, hits[0].PlanType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
