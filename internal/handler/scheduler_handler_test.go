package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type autoSchedulerMock struct {
	scope      dto.AutoScheduleScopeRequest
	curriculum dto.AutoScheduleCurriculumRequest
	cleared    dto.ClearCurriculumRequest
	enqueued   bool
	enqueueErr error
}

func (m *autoSchedulerMock) ScheduleScope(ctx context.Context, req dto.AutoScheduleScopeRequest) (*dto.ScopeScheduleResult, error) {
	m.scope = req
	return &dto.ScopeScheduleResult{Scope: models.Scope{TermYear: req.TermYear, YearLevel: req.YearLevel, PlanType: req.PlanType}, Placed: 2}, nil
}

func (m *autoSchedulerMock) ScheduleCurriculum(ctx context.Context, req dto.AutoScheduleCurriculumRequest) (*dto.AutoScheduleResponse, error) {
	m.curriculum = req
	return &dto.AutoScheduleResponse{Placed: 5}, nil
}

func (m *autoSchedulerMock) ClearCurriculum(ctx context.Context, req dto.ClearCurriculumRequest) (*dto.ClearCurriculumResponse, error) {
	m.cleared = req
	return &dto.ClearCurriculumResponse{Cleared: 3}, nil
}

func (m *autoSchedulerMock) EnqueueCurriculum(ctx context.Context, req dto.AutoScheduleCurriculumRequest) (*dto.SchedulerRun, error) {
	m.enqueued = true
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	return &dto.SchedulerRun{ID: "run-1", Status: dto.SchedulerRunQueued, Request: req}, nil
}

func (m *autoSchedulerMock) GetRun(id string) (*dto.SchedulerRun, error) {
	if id != "run-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduler run not found")
	}
	return &dto.SchedulerRun{ID: id, Status: dto.SchedulerRunCompleted}, nil
}

func TestSchedulerHandlerScope(t *testing.T) {
	mock := &autoSchedulerMock{}
	handler := NewSchedulerHandler(mock)
	c, w := jsonContext(http.MethodPost, "/scheduler/scope", []byte(`{"termYear":"1/2567","yearLevel":"2","planType":"FOUR_YEAR","planIds":[3]}`))

	handler.Scope(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PlanTypeFourYear, mock.scope.PlanType)
	assert.Equal(t, []int64{3}, mock.scope.PlanIDs)
}

func TestSchedulerHandlerCurriculumSyncAndAsync(t *testing.T) {
	mock := &autoSchedulerMock{}
	handler := NewSchedulerHandler(mock)

	c, w := jsonContext(http.MethodPost, "/scheduler/curriculum", []byte(`{"termYear":"1/2567"}`))
	handler.Curriculum(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mock.enqueued)
	assert.Equal(t, "1/2567", mock.curriculum.TermYear)

	c, w = jsonContext(http.MethodPost, "/scheduler/curriculum?async=true", []byte(`{"termYear":"2/2567"}`))
	handler.Curriculum(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, mock.enqueued)
	var run dto.SchedulerRun
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &run))
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, dto.SchedulerRunQueued, run.Status)
}

func TestSchedulerHandlerCurriculumBusy(t *testing.T) {
	mock := &autoSchedulerMock{enqueueErr: appErrors.New("SCHEDULER_BUSY", http.StatusServiceUnavailable, "scheduler queue is full")}
	handler := NewSchedulerHandler(mock)
	c, w := jsonContext(http.MethodPost, "/scheduler/curriculum?async=1", []byte(`{"termYear":"1/2567"}`))

	handler.Curriculum(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SCHEDULER_BUSY", decode(t, w).Error.Code)
}

func TestSchedulerHandlerClearAndRun(t *testing.T) {
	mock := &autoSchedulerMock{}
	handler := NewSchedulerHandler(mock)

	c, w := jsonContext(http.MethodPost, "/scheduler/clear", []byte(`{"termYear":"1/2567"}`))
	handler.Clear(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1/2567", mock.cleared.TermYear)

	c, w = jsonContext(http.MethodGet, "/scheduler/runs/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.Run(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = jsonContext(http.MethodGet, "/scheduler/runs/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Run(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
