package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoTeachingRepositoryFindByPlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCoTeachingRepository(db)

	rows := sqlmock.NewRows([]string{"group_key", "plan_id"}).
		AddRow("CS101-1/2567", 3).
		AddRow("CS101-1/2567", 7)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.group_id = (SELECT group_id FROM co_teaching_group_plans WHERE plan_id = $1)")).
		WithArgs(int64(3)).
		WillReturnRows(rows)

	group, err := repo.FindByPlan(context.Background(), nil, 3)
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, "CS101-1/2567", group.GroupKey)
	assert.Equal(t, []int64{3, 7}, group.PlanIDs)
	assert.True(t, group.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoTeachingRepositoryFindByPlanNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCoTeachingRepository(db)

	mock.ExpectQuery("FROM co_teaching_group_plans m").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "plan_id"}))

	group, err := repo.FindByPlan(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Nil(t, group)
	assert.False(t, group.Active())
}

func TestCoTeachingRepositoryUpsertAndAddMembers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCoTeachingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO co_teaching_groups")).
		WithArgs("K", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (plan_id) DO UPDATE SET group_id = EXCLUDED.group_id")).
		WithArgs(int64(12), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (plan_id) DO UPDATE SET group_id = EXCLUDED.group_id")).
		WithArgs(int64(12), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Upsert(context.Background(), nil, "K")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	require.NoError(t, repo.AddMembers(context.Background(), nil, id, []int64{1, 2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoTeachingRepositoryDeleteSparse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCoTeachingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM co_teaching_group_plans WHERE group_id IN (")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM co_teaching_groups WHERE id IN (")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteSparse(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoTeachingRepositoryRemoveMembers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCoTeachingRepository(db)

	require.NoError(t, repo.RemoveMembers(context.Background(), nil, "CS101-1/2567", nil))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM co_teaching_group_plans\nWHERE plan_id = ANY($2) AND group_id = (SELECT id FROM co_teaching_groups WHERE group_key = $1)")).
		WithArgs("CS101-1/2567", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RemoveMembers(context.Background(), nil, "CS101-1/2567", []int64{3, 7}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
