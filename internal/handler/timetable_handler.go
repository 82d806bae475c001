package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableService interface {
	ListCached(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, bool, error)
	Assign(ctx context.Context, req dto.AssignTimetableRequest) (*models.TimetableEntryDetail, error)
	Unassign(ctx context.Context, planID int64) ([]int64, error)
}

// TimetableHandler exposes placement endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Assign godoc
// @Summary Place a subject on the timetable
// @Description Replaces the subject's previous placement and copies it to DVE mirrors and co-taught subjects. Conflicts are returned with status 409.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.AssignTimetableRequest true "Placement"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable [post]
func (h *TimetableHandler) Assign(c *gin.Context) {
	var req dto.AssignTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	entry, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// List godoc
// @Summary List placements
// @Description Returns an empty list when no filter is given. Teachers only see their own placements.
// @Tags Timetable
// @Produce json
// @Param roomId query int false "Room ID"
// @Param teacherId query int false "Teacher ID"
// @Param termYear query string false "Term and year, e.g. 1/2567"
// @Param yearLevel query string false "Year level"
// @Param planType query string false "TRANSFER, FOUR_YEAR, DVE-MSIX or DVE-LVC"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return
	}
	filter := query.Filter()
	if claims := claimsFromContext(c); claims != nil && !claims.IsAdmin() {
		filter.TeacherID = claims.TeacherID
	}
	h.respondList(c, filter)
}

// Mine godoc
// @Summary List the caller's own placements
// @Tags Timetable
// @Produce json
// @Param termYear query string false "Term and year"
// @Success 200 {object} response.Envelope
// @Router /timetable/me [get]
func (h *TimetableHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.TeacherID == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "caller is not linked to a teacher"))
		return
	}
	h.respondList(c, models.TimetableFilter{TeacherID: claims.TeacherID, TermYear: c.Query("termYear")})
}

func (h *TimetableHandler) respondList(c *gin.Context, filter models.TimetableFilter) {
	entries, hit, err := h.service.ListCached(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, entries, internalmiddleware.ExtractMeta(c))
}

// Unassign godoc
// @Summary Remove a subject's placement
// @Description Also removes the placements of its DVE mirror or co-taught subjects.
// @Tags Timetable
// @Produce json
// @Param subjectId path int true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/{subjectId} [delete]
func (h *TimetableHandler) Unassign(c *gin.Context) {
	planID, ok := pathID(c, "subjectId")
	if !ok {
		return
	}
	ids, err := h.service.Unassign(c.Request.Context(), planID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UnassignTimetableResponse{DeletedPlans: ids})
}
