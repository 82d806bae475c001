package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type autoScheduler interface {
	ScheduleScope(ctx context.Context, req dto.AutoScheduleScopeRequest) (*dto.ScopeScheduleResult, error)
	ScheduleCurriculum(ctx context.Context, req dto.AutoScheduleCurriculumRequest) (*dto.AutoScheduleResponse, error)
	ClearCurriculum(ctx context.Context, req dto.ClearCurriculumRequest) (*dto.ClearCurriculumResponse, error)
	EnqueueCurriculum(ctx context.Context, req dto.AutoScheduleCurriculumRequest) (*dto.SchedulerRun, error)
	GetRun(id string) (*dto.SchedulerRun, error)
}

// SchedulerHandler exposes the automatic scheduler.
type SchedulerHandler struct {
	service autoScheduler
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(svc autoScheduler) *SchedulerHandler {
	return &SchedulerHandler{service: svc}
}

// Scope godoc
// @Summary Auto-schedule one timetable scope
// @Description Places every unplaced subject of the (term, year level, plan type) scope, largest first.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.AutoScheduleScopeRequest true "Scope"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /scheduler/scope [post]
func (h *SchedulerHandler) Scope(c *gin.Context) {
	var req dto.AutoScheduleScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid auto-schedule payload"))
		return
	}
	result, err := h.service.ScheduleScope(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Curriculum godoc
// @Summary Auto-schedule every scope of the curriculum
// @Description With async=true the run is queued and its handle returned with status 202.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param async query bool false "Run in the background"
// @Param payload body dto.AutoScheduleCurriculumRequest true "Curriculum"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /scheduler/curriculum [post]
func (h *SchedulerHandler) Curriculum(c *gin.Context) {
	var req dto.AutoScheduleCurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid auto-schedule payload"))
		return
	}

	if async, _ := strconv.ParseBool(c.DefaultQuery("async", "false")); async {
		run, err := h.service.EnqueueCurriculum(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, run)
		return
	}

	result, err := h.service.ScheduleCurriculum(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Clear godoc
// @Summary Remove every placement of the curriculum
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.ClearCurriculumRequest true "Curriculum"
// @Success 200 {object} response.Envelope
// @Router /scheduler/clear [post]
func (h *SchedulerHandler) Clear(c *gin.Context) {
	var req dto.ClearCurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clear payload"))
		return
	}
	result, err := h.service.ClearCurriculum(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Run godoc
// @Summary Get the state of a background curriculum run
// @Tags Scheduler
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduler/runs/{id} [get]
func (h *SchedulerHandler) Run(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}
